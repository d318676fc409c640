package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dictat/internal/app"
	"dictat/internal/core/config"
	"dictat/internal/core/logger"
	"dictat/internal/core/server"
	"dictat/internal/domain"
	"dictat/internal/service/account"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "dictat-admin",
		Short:         "dictat 管理端：后台 API、迁移、初始化账号",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")

	// withApp 加载配置并组装依赖，fn 返回后统一释放
	withApp := func(fn func(a *app.App) error) error {
		_ = godotenv.Load()
		if cfgPath == "" {
			cfgPath = os.Getenv("CONFIG_PATH")
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		log, cleanup := logger.New(cfg.Log)
		defer cleanup()
		a, err := app.New(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(a)
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "启动后台 API（/admin/v1）",
			RunE: func(*cobra.Command, []string) error {
				return withApp(serve)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "按模型自动迁移表结构",
			RunE: func(*cobra.Command, []string) error {
				return withApp(func(a *app.App) error { return a.Migrate() })
			},
		},
		createUserCmd(withApp),
	)
	return root
}

func createUserCmd(withApp func(func(*app.App) error) error) *cobra.Command {
	var in account.CreateUserInput
	var role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "创建账号（首个管理员用这个建）",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Role = domain.Role(role)
			if in.Password == "" {
				in.Password = os.Getenv("DICTAT_PASSWORD")
			}
			return withApp(func(a *app.App) error {
				u, err := a.Accounts.Bootstrap(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (or $DICTAT_PASSWORD)")
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "doctor | secretary | admin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func serve(a *app.App) error {
	cfg, log := a.Cfg, a.Log
	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(addr, a.AdminEngine(), 5*time.Second, 30*time.Second, 60*time.Second)

	// 启动前打印可点击地址
	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Error("admin api start FAILED", zap.Error(err))
		return err
	case <-quit:
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("admin api stopped gracefully")
	return nil
}
