package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/wolethescientist/audit-system-sub001/internal/auth"
	"github.com/wolethescientist/audit-system-sub001/internal/directory"
	"github.com/wolethescientist/audit-system-sub001/internal/evidence"
	"github.com/wolethescientist/audit-system-sub001/internal/workflow"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	users   *directory.Service
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	tokens, err := auth.NewTokens("test-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	users, err := directory.NewService(directory.NewInMemory(), directory.WithBcryptCost(4))
	if err != nil {
		t.Fatalf("directory.NewService: %v", err)
	}
	audits, err := workflow.NewService(workflow.NewInMemory())
	if err != nil {
		t.Fatalf("workflow.NewService: %v", err)
	}
	ev, err := evidence.NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("evidence.NewDisk: %v", err)
	}

	api := New(ReadyProbe{}, "test", tokens, users, audits, ev)
	api.SetRateLimit(1000, 1000)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		users:   users,
	}
}

// seedUser registers a user directly against the directory service so tests
// do not depend on the admin-gated HTTP endpoint.
func (c *apiClient) seedUser(email, role, departmentID string) {
	c.t.Helper()
	_, err := c.users.CreateUser(context.Background(), directory.CreateUserInput{
		Email:        email,
		FullName:     "Test " + email,
		Password:     "passw0rd!",
		Role:         role,
		DepartmentID: departmentID,
	})
	if err != nil {
		c.t.Fatalf("seed user %s: %v", email, err)
	}
}

func (c *apiClient) login(email string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": "passw0rd!",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIAuditLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("admin@corp.local", "system_admin", "")
	adminTok := api.login("admin@corp.local")

	// Admin creates the department under audit.
	resp := api.post("/v1/departments", map[string]any{"name": "Finance"}, bearerHeader(adminTok))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create department: %d", resp.StatusCode)
	}
	dept := decode[map[string]any](t, resp)
	deptID := dept["id"].(string)

	api.seedUser("mgr@corp.local", "audit_manager", "")
	api.seedUser("head@corp.local", "department_head", deptID)
	mgrTok := api.login("mgr@corp.local")
	headTok := api.login("head@corp.local")

	// Need the auditor's directory id for assignment.
	auditor, err := api.users.CreateUser(context.Background(), directory.CreateUserInput{
		Email:    "auditor@corp.local",
		FullName: "Test auditor",
		Password: "passw0rd!",
		Role:     "auditor",
	})
	if err != nil {
		t.Fatalf("seed auditor: %v", err)
	}
	audTok := api.login("auditor@corp.local")

	// Manager plans the audit.
	resp = api.post("/v1/audits", map[string]any{
		"title":          "Q2 review",
		"department_ids": []string{deptID},
		"auditor_ids":    []string{auditor.ID},
	}, bearerHeader(mgrTok))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create audit: %d", resp.StatusCode)
	}
	audit := decode[map[string]any](t, resp)
	auditID := audit["id"].(string)
	if audit["status"] != "PLANNED" {
		t.Fatalf("new audit status: %v", audit["status"])
	}

	// The auditor may not start execution.
	resp = api.post("/v1/audits/"+auditID+"/transition", map[string]any{"target": "EXECUTING"}, bearerHeader(audTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("auditor transition: expected 403, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/audits/"+auditID+"/transition", map[string]any{"target": "EXECUTING"}, bearerHeader(mgrTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("manager transition: %d", resp.StatusCode)
	}

	// Reporting is gated on recorded artifacts.
	resp = api.post("/v1/audits/"+auditID+"/transition", map[string]any{"target": "REPORTING"}, bearerHeader(mgrTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("reporting without artifacts: expected 422, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/audits/"+auditID+"/observations", nil, bearerHeader(audTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record observation: %d", resp.StatusCode)
	}

	resp = api.post("/v1/audits/"+auditID+"/findings", map[string]any{
		"severity": "high",
		"title":    "Unreviewed admin accounts",
	}, bearerHeader(audTok))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add finding: %d", resp.StatusCode)
	}
	finding := decode[map[string]any](t, resp)
	if finding["severity"] != "HIGH" {
		t.Fatalf("severity not canonicalised: %v", finding["severity"])
	}

	resp = api.post("/v1/audits/"+auditID+"/transition", map[string]any{"target": "REPORTING"}, bearerHeader(mgrTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("to reporting: %d", resp.StatusCode)
	}
	resp = api.post("/v1/audits/"+auditID+"/transition", map[string]any{"target": "AWAITING_APPROVAL"}, bearerHeader(mgrTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("to awaiting approval: %d", resp.StatusCode)
	}

	// Closing before the department signed off is refused.
	resp = api.post("/v1/audits/"+auditID+"/transition", map[string]any{"target": "CLOSED"}, bearerHeader(mgrTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("close without approval: expected 422, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/audits/"+auditID+"/approve", nil, bearerHeader(headTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d", resp.StatusCode)
	}

	resp = api.post("/v1/audits/"+auditID+"/transition", map[string]any{"target": "CLOSED"}, bearerHeader(mgrTok))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close: %d", resp.StatusCode)
	}
	closed := decode[map[string]any](t, resp)
	if closed["status"] != "CLOSED" {
		t.Fatalf("final status: %v", closed["status"])
	}
}

func TestAPIEvidenceUpload(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("mgr@corp.local", "audit_manager", "")
	mgrTok := api.login("mgr@corp.local")

	resp := api.post("/v1/audits", map[string]any{
		"title":          "Access review",
		"department_ids": []string{"dept-1"},
	}, bearerHeader(mgrTok))
	audit := decode[map[string]any](t, resp)
	auditID := audit["id"].(string)

	resp = api.post("/v1/audits/"+auditID+"/transition", map[string]any{"target": "EXECUTING"}, bearerHeader(mgrTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("to executing: %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "export.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("account,balance\n1,100\n")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, api.baseURL+"/v1/audits/"+auditID+"/evidence", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+mgrTok)
	upResp, err := api.client.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if upResp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status: %d", upResp.StatusCode)
	}
	artifact := decode[map[string]any](t, upResp)
	if artifact["sha256"] == "" || artifact["size"].(float64) == 0 {
		t.Fatalf("artifact not described: %v", artifact)
	}

	// The upload counts as an evidence artifact.
	countResp := api.get("/v1/audits/"+auditID+"/artifacts", nil, bearerHeader(mgrTok))
	counts := decode[map[string]any](t, countResp)
	if counts["evidence"].(float64) != 1 {
		t.Fatalf("evidence count: %v", counts["evidence"])
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/audits", map[string]any{"title": "x"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var errBody map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestAPIRejectsGarbageToken(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/audits", map[string]any{"title": "x"}, bearerHeader("not-a-token"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAPIUserManagement(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("admin@corp.local", "system_admin", "")
	api.seedUser("mgr@corp.local", "audit_manager", "")
	adminTok := api.login("admin@corp.local")
	mgrTok := api.login("mgr@corp.local")

	// Only the admin may create users over HTTP.
	resp := api.post("/v1/users", map[string]any{
		"email":     "new@corp.local",
		"full_name": "New Hire",
		"password":  "passw0rd!",
		"role":      "auditor",
	}, bearerHeader(mgrTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("manager creating user: expected 403, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/users", map[string]any{
		"email":     "new@corp.local",
		"full_name": "New Hire",
		"password":  "passw0rd!",
		"role":      "auditor",
	}, bearerHeader(adminTok))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user: %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	userID := created["id"].(string)

	// Duplicate email conflicts.
	resp = api.post("/v1/users", map[string]any{
		"email":     "new@corp.local",
		"full_name": "Other",
		"password":  "passw0rd!",
		"role":      "auditor",
	}, bearerHeader(adminTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email: expected 409, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/users/"+userID+"/deactivate", nil, bearerHeader(adminTok))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate: %d", resp.StatusCode)
	}

	// Deactivated users cannot log in.
	loginResp := api.post("/v1/auth/login", map[string]any{
		"email":    "new@corp.local",
		"password": "passw0rd!",
	}, nil)
	loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deactivated login: expected 401, got %d", loginResp.StatusCode)
	}
}
