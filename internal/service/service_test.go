package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/expenseshare/server/internal/auth"
	"github.com/expenseshare/server/internal/ledger"
	"github.com/expenseshare/server/internal/models"
	"github.com/expenseshare/server/internal/storage/sqlite"
)

// testClient drives the API over httptest with per-user tokens.
type testClient struct {
	t      *testing.T
	server *httptest.Server
	tokens map[string]string
}

func setupTestServer(t *testing.T) *testClient {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := ledger.New(store)
	authenticator := auth.NewPasswordAuthenticator(store)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	svc, err := New(store, engine, authenticator, jwtManager)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	server := httptest.NewServer(svc.Routes())
	t.Cleanup(server.Close)

	return &testClient{t: t, server: server, tokens: make(map[string]string)}
}

func (c *testClient) do(method, path, asUser string, body interface{}) (*http.Response, map[string]interface{}) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	if err != nil {
		c.t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if asUser != "" {
		req.Header.Set("Authorization", "Bearer "+c.tokens[asUser])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (c *testClient) doList(method, path, asUser string) (*http.Response, []interface{}) {
	c.t.Helper()

	req, err := http.NewRequest(method, c.server.URL+path, nil)
	if err != nil {
		c.t.Fatalf("failed to build request: %v", err)
	}
	if asUser != "" {
		req.Header.Set("Authorization", "Bearer "+c.tokens[asUser])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded []interface{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// register creates a user via the API and stores their token under name.
func (c *testClient) register(name string) string {
	c.t.Helper()

	resp, body := c.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":       name + "@example.com",
		"displayName": name,
		"password":    "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: status %d, body %v", name, resp.StatusCode, body)
	}
	c.tokens[name] = body["token"].(string)
	user := body["user"].(map[string]interface{})
	return user["id"].(string)
}

func (c *testClient) createGroup(creator string, members ...string) string {
	c.t.Helper()

	resp, body := c.do(http.MethodPost, "/api/groups/", creator, map[string]interface{}{
		"name":    "Trip",
		"members": members,
	})
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("create group: status %d, body %v", resp.StatusCode, body)
	}
	return body["id"].(string)
}

func TestAuthFlow(t *testing.T) {
	c := setupTestServer(t)
	c.register("alice")

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "alice@example.com", "displayName": "Alice 2", "password": "password123",
		})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("weak password rejected", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "short@example.com", "displayName": "Short", "password": "short",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("login returns a working token", func(t *testing.T) {
		resp, body := c.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "password123",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body %v", resp.StatusCode, body)
		}
		c.tokens["alice"] = body["token"].(string)

		resp, me := c.do(http.MethodGet, "/api/auth/me", "alice", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("me: status = %d", resp.StatusCode)
		}
		if me["email"] != "alice@example.com" {
			t.Errorf("me = %v", me)
		}
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "wrong-password",
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		resp, _ := c.do(http.MethodGet, "/api/auth/me", "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestExpenseAndBalanceFlow(t *testing.T) {
	c := setupTestServer(t)
	c.register("alice")
	bobID := c.register("bob")
	carolID := c.register("carol")
	groupID := c.createGroup("alice", bobID, carolID)

	resp, body := c.do(http.MethodGet, "/api/auth/me", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	aliceID := body["id"].(string)

	resp, expense := c.do(http.MethodPost, "/api/expenses/", "alice", map[string]interface{}{
		"groupId":     groupID,
		"description": "dinner",
		"amount":      90,
		"paidBy":      aliceID,
		"splitType":   "equal",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create expense: status %d, body %v", resp.StatusCode, expense)
	}

	t.Run("group balances show the debts", func(t *testing.T) {
		resp, edges := c.doList(http.MethodGet, "/api/balances/group/"+groupID, "bob")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if len(edges) != 2 {
			t.Fatalf("edges = %v, want 2", edges)
		}
	})

	t.Run("expense list spans the caller's groups", func(t *testing.T) {
		resp, expenses := c.doList(http.MethodGet, "/api/expenses/", "bob")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if len(expenses) != 1 {
			t.Errorf("expenses = %v, want 1", expenses)
		}

		c.register("nina")
		resp, none := c.doList(http.MethodGet, "/api/expenses/", "nina")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if len(none) != 0 {
			t.Errorf("expenses for groupless user = %v, want none", none)
		}
	})

	t.Run("outsider cannot view group balances", func(t *testing.T) {
		c.register("mallory")
		resp, _ := c.doList(http.MethodGet, "/api/balances/group/"+groupID, "mallory")
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("bad split totals are a validation error", func(t *testing.T) {
		resp, body := c.do(http.MethodPost, "/api/expenses/", "alice", map[string]interface{}{
			"groupId":     groupID,
			"description": "snacks",
			"amount":      100,
			"paidBy":      aliceID,
			"splitType":   "percentage",
			"splits": []map[string]interface{}{
				{"userId": bobID, "percentage": 50},
				{"userId": carolID, "percentage": 40},
			},
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, body %v", resp.StatusCode, body)
		}
	})

	t.Run("settling everything archives the group ledger", func(t *testing.T) {
		for _, debtor := range []string{bobID, carolID} {
			asUser := "bob"
			if debtor == carolID {
				asUser = "carol"
			}
			resp, body := c.do(http.MethodPost, "/api/balances/settle", asUser, map[string]interface{}{
				"groupId":    groupID,
				"fromUserId": debtor,
				"toUserId":   aliceID,
				"amount":     30,
			})
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("settle: status %d, body %v", resp.StatusCode, body)
			}
		}

		resp, expenses := c.doList(http.MethodGet, "/api/expenses/group/"+groupID, "alice")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if len(expenses) != 0 {
			t.Errorf("expenses not archived: %v", expenses)
		}

		resp, settled := c.doList(http.MethodGet, "/api/balances/settled", "carol")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if len(settled) != 1 {
			t.Errorf("settled history = %v, want 1 snapshot", settled)
		}
	})
}

func TestSettlementRequestFlow(t *testing.T) {
	c := setupTestServer(t)
	c.register("alice")
	bobID := c.register("bob")
	groupID := c.createGroup("alice", bobID)

	_, me := c.do(http.MethodGet, "/api/auth/me", "alice", nil)
	aliceID := me["id"].(string)

	resp, body := c.do(http.MethodPost, "/api/expenses/", "alice", map[string]interface{}{
		"groupId":     groupID,
		"description": "rent",
		"amount":      100,
		"paidBy":      aliceID,
		"splitType":   "equal",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create expense: status %d, body %v", resp.StatusCode, body)
	}

	resp, request := c.do(http.MethodPost, "/api/settlement-requests/", "bob", map[string]interface{}{
		"groupId":    groupID,
		"fromUserId": bobID,
		"toUserId":   aliceID,
		"amount":     50,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create request: status %d, body %v", resp.StatusCode, request)
	}
	requestID := request["id"].(string)

	t.Run("creating on someone else's behalf is forbidden", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/settlement-requests/", "alice", map[string]interface{}{
			"groupId": groupID, "fromUserId": bobID, "toUserId": aliceID, "amount": 50,
		})
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("duplicate pending request conflicts", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/settlement-requests/", "bob", map[string]interface{}{
			"groupId": groupID, "fromUserId": bobID, "toUserId": aliceID, "amount": 25,
		})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("sender cannot approve their own request", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/settlement-requests/"+requestID+"/approve", "bob", nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("recipient sees it as incoming", func(t *testing.T) {
		resp, requests := c.doList(http.MethodGet, "/api/settlement-requests/?role=incoming", "alice")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if len(requests) != 1 {
			t.Errorf("incoming = %v, want 1", requests)
		}
	})

	t.Run("approval settles and resolves", func(t *testing.T) {
		resp, approved := c.do(http.MethodPost, "/api/settlement-requests/"+requestID+"/approve", "alice", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body %v", resp.StatusCode, approved)
		}
		if approved["status"] != string(models.RequestApproved) {
			t.Errorf("status = %v, want approved", approved["status"])
		}

		resp, edges := c.doList(http.MethodGet, "/api/balances/group/"+groupID, "alice")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if len(edges) != 0 {
			t.Errorf("edges = %v, want settled ledger", edges)
		}
	})

	t.Run("resolved request cannot be re-approved", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/settlement-requests/"+requestID+"/approve", "alice", nil)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})
}

func TestGroupLifecycle(t *testing.T) {
	c := setupTestServer(t)
	c.register("alice")
	bobID := c.register("bob")
	groupID := c.createGroup("alice", bobID)

	t.Run("non-creator cannot manage members", func(t *testing.T) {
		resp, _ := c.do(http.MethodDelete, fmt.Sprintf("/api/groups/%s/members/%s", groupID, bobID), "bob", nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("creator cannot be removed", func(t *testing.T) {
		_, me := c.do(http.MethodGet, "/api/auth/me", "alice", nil)
		resp, _ := c.do(http.MethodDelete, fmt.Sprintf("/api/groups/%s/members/%s", groupID, me["id"]), "alice", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("member removal recomputes balances", func(t *testing.T) {
		resp, _ := c.do(http.MethodDelete, fmt.Sprintf("/api/groups/%s/members/%s", groupID, bobID), "alice", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		resp, group := c.do(http.MethodGet, "/api/groups/"+groupID, "alice", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		members := group["members"].([]interface{})
		if len(members) != 1 {
			t.Errorf("members = %v, want only the creator", members)
		}
	})

	t.Run("only the creator may delete the group", func(t *testing.T) {
		resp, _ := c.do(http.MethodDelete, "/api/groups/"+groupID, "bob", nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
		resp, _ = c.do(http.MethodDelete, "/api/groups/"+groupID, "alice", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
		resp, _ = c.do(http.MethodGet, "/api/groups/"+groupID, "alice", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404 after delete", resp.StatusCode)
		}
	})
}
