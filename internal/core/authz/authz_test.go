package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dictat/internal/domain"
)

var (
	doctor    = domain.Actor{ID: "doc-1", Role: domain.RoleDoctor}
	secretary = domain.Actor{ID: "sec-1", Role: domain.RoleSecretary}
	admin     = domain.Actor{ID: "adm-1", Role: domain.RoleAdmin}
)

func TestFallback(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		req   Request
		allow bool
	}{
		{"admin anything", Request{Actor: admin, Action: ActDelete, Resource: Resource{Type: ResUser}}, true},
		{"doctor creates dictation", Request{Actor: doctor, Action: ActCreate, Resource: Resource{Type: ResDictation}}, true},
		{"doctor reads own", Request{Actor: doctor, Action: ActRead, Resource: Resource{Type: ResDictation, ID: "d", OwnerID: "doc-1"}}, true},
		{"doctor reads other", Request{Actor: doctor, Action: ActRead, Resource: Resource{Type: ResDictation, ID: "d", OwnerID: "doc-2"}}, false},
		{"doctor claims", Request{Actor: doctor, Action: ActClaim, Resource: Resource{Type: ResDictation, OwnerID: "doc-1"}}, false},
		{"secretary reads any dictation", Request{Actor: secretary, Action: ActRead, Resource: Resource{Type: ResDictation, OwnerID: "doc-2"}}, true},
		{"secretary claims", Request{Actor: secretary, Action: ActClaim, Resource: Resource{Type: ResDictation, OwnerID: "doc-2"}}, true},
		{"secretary unclaims", Request{Actor: secretary, Action: ActUnclaim, Resource: Resource{Type: ResDictation}}, true},
		{"secretary deletes dictation", Request{Actor: secretary, Action: ActDelete, Resource: Resource{Type: ResDictation}}, false},
		{"secretary creates transcription", Request{Actor: secretary, Action: ActCreate, Resource: Resource{Type: ResTranscription}}, true},
		{"secretary updates own", Request{Actor: secretary, Action: ActUpdate, Resource: Resource{Type: ResTranscription, OwnerID: "sec-1"}}, true},
		{"secretary updates other", Request{Actor: secretary, Action: ActSubmit, Resource: Resource{Type: ResTranscription, OwnerID: "sec-2"}}, false},
		{"secretary reads other transcription", Request{Actor: secretary, Action: ActRead, Resource: Resource{Type: ResTranscription, OwnerID: "sec-2"}}, true},
		{"secretary approves", Request{Actor: secretary, Action: ActApprove, Resource: Resource{Type: ResTranscription, OwnerID: "sec-1"}}, false},
		{"doctor approves", Request{Actor: doctor, Action: ActApprove, Resource: Resource{Type: ResTranscription, OwnerID: "sec-1"}}, true},
		{"doctor rejects", Request{Actor: doctor, Action: ActReject, Resource: Resource{Type: ResTranscription}}, true},
		{"doctor edits transcription", Request{Actor: doctor, Action: ActUpdate, Resource: Resource{Type: ResTranscription}}, false},
		{"non admin users", Request{Actor: doctor, Action: ActRead, Resource: Resource{Type: ResUser}}, false},
		{"unknown role", Request{Actor: domain.Actor{ID: "x", Role: "guest"}, Action: ActRead, Resource: Resource{Type: ResDictation}}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.allow, Fallback(tt.req))
		})
	}
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	assert.NoError(t, RequireRole(doctor, domain.RoleDoctor, domain.RoleAdmin))
	assert.ErrorIs(t, RequireRole(secretary, domain.RoleDoctor), domain.ErrForbidden)
}

func opaServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestDecider_UsesPolicyEvaluator(t *testing.T) {
	t.Parallel()
	docs := make(chan map[string]any, 1)
	srv := opaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/data/dictat/allow", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var doc map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		docs <- doc
		// 与本地规则相反，确认结论来自策略引擎
		_, _ = w.Write([]byte(`{"result": true}`))
	})
	d := New(NewOPAClient(srv.URL, "/v1/data/dictat/allow", time.Second), nil, 0, zap.NewNop())

	req := Request{Actor: doctor, Action: ActRead, Resource: Resource{Type: ResDictation, ID: "d1", OwnerID: "doc-2"}}
	assert.True(t, d.Check(context.Background(), req))

	got := <-docs
	input := got["input"].(map[string]any)
	assert.Equal(t, map[string]any{"id": "doc-1", "role": "doctor"}, input["user"])
	assert.Equal(t, "read", input["action"])
	assert.Equal(t, map[string]any{"type": "dictation", "id": "d1", "owner_id": "doc-2"}, input["resource"])
	assert.Equal(t, map[string]any{}, input["context"])
}

func TestDecider_NullOwnerAndUndefinedResult(t *testing.T) {
	t.Parallel()
	docs := make(chan map[string]any, 1)
	srv := opaServer(t, func(w http.ResponseWriter, r *http.Request) {
		var doc map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		docs <- doc
		_, _ = w.Write([]byte(`{}`))
	})
	d := New(NewOPAClient(srv.URL, "v1/data/dictat/allow", time.Second), nil, 0, zap.NewNop())

	// 本地规则会允许，但策略引擎未定义结果时按拒绝处理
	assert.False(t, d.Check(context.Background(), Request{Actor: admin, Action: ActCreate, Resource: Resource{Type: ResDictation}}))
	got := <-docs
	res := got["input"].(map[string]any)["resource"].(map[string]any)
	assert.Nil(t, res["id"])
	assert.Nil(t, res["owner_id"])
}

func TestDecider_FallbackOnFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"garbage body", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("<html>")) }},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := opaServer(t, tt.handler)
			core, logs := observer.New(zapcore.WarnLevel)
			d := New(NewOPAClient(srv.URL, "/v1/data/dictat/allow", 100*time.Millisecond), nil, 0, zap.New(core))

			own := Request{Actor: doctor, Action: ActUpdate, Resource: Resource{Type: ResDictation, OwnerID: "doc-1"}}
			other := Request{Actor: doctor, Action: ActUpdate, Resource: Resource{Type: ResDictation, OwnerID: "doc-2"}}
			assert.True(t, d.Check(context.Background(), own))
			assert.False(t, d.Check(context.Background(), other))
			assert.Equal(t, 2, logs.FilterMessage("policy evaluator unavailable, using fallback rules").Len())
		})
	}
}

func TestDecider_Unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := New(NewOPAClient(url, "/v1/data/dictat/allow", time.Second), nil, 0, zap.NewNop())
	err := d.Require(context.Background(), Request{Actor: secretary, Action: ActDelete, Resource: Resource{Type: ResDictation}})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.NoError(t, d.Require(context.Background(), Request{Actor: secretary, Action: ActClaim, Resource: Resource{Type: ResDictation}}))
}

func TestDecider_LocalOnly(t *testing.T) {
	t.Parallel()
	d := New(nil, nil, 0, zap.NewNop())
	assert.True(t, d.Check(context.Background(), Request{Actor: admin, Action: ActAssign, Resource: Resource{Type: ResDictation}}))
	assert.False(t, d.Check(context.Background(), Request{Actor: secretary, Action: ActAssign, Resource: Resource{Type: ResDictation}}))
}

func TestDecider_CacheKeyAndUncachedEvaluation(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := opaServer(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"result": false}`))
	})
	req := Request{Actor: admin, Action: ActRead, Resource: Resource{Type: ResAudit}}
	assert.Equal(t, cacheKey(req), cacheKey(req))
	other := req
	other.Resource.ID = "x"
	assert.NotEqual(t, cacheKey(req), cacheKey(other))

	d := New(NewOPAClient(srv.URL, "/v1/data/dictat/allow", time.Second), nil, time.Minute, zap.NewNop())
	assert.False(t, d.Check(context.Background(), req))
	assert.False(t, d.Check(context.Background(), req))
	assert.Equal(t, int32(2), hits.Load(), "without a cache every check reaches the evaluator")
}
