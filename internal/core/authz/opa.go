package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type opaUser struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type opaResource struct {
	Type    string  `json:"type"`
	ID      *string `json:"id"`
	OwnerID *string `json:"owner_id"`
}

type opaInput struct {
	User     opaUser        `json:"user"`
	Action   string         `json:"action"`
	Resource opaResource    `json:"resource"`
	Context  map[string]any `json:"context"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func inputDocument(req Request) opaInput {
	ctx := req.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return opaInput{
		User:   opaUser{ID: req.Actor.ID, Role: string(req.Actor.Role)},
		Action: string(req.Action),
		Resource: opaResource{
			Type:    req.Resource.Type,
			ID:      nullable(req.Resource.ID),
			OwnerID: nullable(req.Resource.OwnerID),
		},
		Context: ctx,
	}
}

// OPAClient 通过 OPA Data API 评估策略
type OPAClient struct {
	endpoint string
	http     *http.Client
}

func NewOPAClient(baseURL, policyPath string, timeout time.Duration) *OPAClient {
	return &OPAClient{
		endpoint: strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(policyPath, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

func (o *OPAClient) Evaluate(ctx context.Context, req Request) (bool, error) {
	body, err := json.Marshal(map[string]any{"input": inputDocument(req)})
	if err != nil {
		return false, err
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	hr.Header.Set("Content-Type", "application/json")

	res, err := o.http.Do(hr)
	if err != nil {
		return false, fmt.Errorf("opa request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return false, fmt.Errorf("opa status %d", res.StatusCode)
	}
	var out struct {
		Result *bool `json:"result"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return false, fmt.Errorf("opa decode: %w", err)
	}
	// 策略未定义时 OPA 返回 {}，按拒绝处理
	return out.Result != nil && *out.Result, nil
}
