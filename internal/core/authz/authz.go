package authz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dictat/internal/core/cache"
	"dictat/internal/core/metrics"
	"dictat/internal/domain"
)

type Action string

const (
	ActCreate  Action = "create"
	ActRead    Action = "read"
	ActUpdate  Action = "update"
	ActDelete  Action = "delete"
	ActClaim   Action = "claim"
	ActUnclaim Action = "unclaim"
	ActAssign  Action = "assign"
	ActSubmit  Action = "submit"
	ActApprove Action = "approve"
	ActReject  Action = "reject"
)

const (
	ResDictation     = "dictation"
	ResTranscription = "transcription"
	ResUser          = "user"
	ResAudit         = "audit"
)

type Resource struct {
	Type    string
	ID      string
	OwnerID string
}

type Request struct {
	Actor    domain.Actor
	Action   Action
	Resource Resource
	Context  map[string]any
}

// Evaluator 外部策略引擎；返回 error 表示不可用，调用方走本地规则
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (bool, error)
}

type Decider struct {
	eval     Evaluator
	cache    *cache.Cache
	cacheTTL time.Duration
	log      *zap.Logger
}

// New eval 为 nil 时只用本地规则；c 为 nil 时不缓存
func New(eval Evaluator, c *cache.Cache, cacheTTL time.Duration, log *zap.Logger) *Decider {
	return &Decider{eval: eval, cache: c, cacheTTL: cacheTTL, log: log}
}

// RequireRole 纯角色判断
func RequireRole(actor domain.Actor, roles ...domain.Role) error {
	if actor.Is(roles...) {
		return nil
	}
	return fmt.Errorf("role %q not allowed: %w", actor.Role, domain.ErrForbidden)
}

func (d *Decider) Check(ctx context.Context, req Request) bool {
	if d.eval == nil {
		return d.local(req, "local")
	}
	allowed, err := d.evaluate(ctx, req)
	if err != nil {
		d.log.Warn("policy evaluator unavailable, using fallback rules",
			zap.Error(err),
			zap.String("user_id", req.Actor.ID),
			zap.String("action", string(req.Action)),
			zap.String("resource", req.Resource.Type),
		)
		return d.local(req, "fallback")
	}
	metrics.AuthzDecisions.WithLabelValues("opa", result(allowed)).Inc()
	return allowed
}

func (d *Decider) Require(ctx context.Context, req Request) error {
	if d.Check(ctx, req) {
		return nil
	}
	return fmt.Errorf("%s %s: %w", req.Action, req.Resource.Type, domain.ErrForbidden)
}

func (d *Decider) evaluate(ctx context.Context, req Request) (bool, error) {
	if d.cache == nil || d.cacheTTL <= 0 {
		return d.eval.Evaluate(ctx, req)
	}
	// 只缓存策略引擎给出的结论，fallback 结果不入缓存
	return cache.GetOrLoadJSON(d.cache, ctx, cacheKey(req), d.cacheTTL, func(ctx context.Context) (bool, error) {
		return d.eval.Evaluate(ctx, req)
	})
}

func (d *Decider) local(req Request, source string) bool {
	allowed := Fallback(req)
	metrics.AuthzDecisions.WithLabelValues(source, result(allowed)).Inc()
	return allowed
}

func cacheKey(req Request) string {
	b, _ := json.Marshal(inputDocument(req))
	sum := sha256.Sum256(b)
	return "authz:" + hex.EncodeToString(sum[:])
}

func result(ok bool) string {
	if ok {
		return "allow"
	}
	return "deny"
}
