package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dietops/backend/internal/auth"
	"github.com/dietops/backend/internal/clients"
	"github.com/dietops/backend/internal/database"
	"github.com/dietops/backend/internal/draft"
	"github.com/dietops/backend/internal/export"
	"github.com/dietops/backend/internal/foods"
	"github.com/dietops/backend/internal/identifiers"
	"github.com/dietops/backend/internal/knowledge"
	"github.com/dietops/backend/internal/plans"
	"github.com/dietops/backend/internal/server"
	"github.com/dietops/backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	sessionSigningSecret = "integration-secret"
	sessionCookieName    = "dietops_session"
	sessionUserID        = "coach-abc"
	jsonContentType      = "application/json"
)

type flowClient struct {
	testContext *testing.T
	baseURL     string
	cookie      *http.Cookie
}

func (c flowClient) call(method, path string, body any, target any) int {
	c.testContext.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			c.testContext.Fatalf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.testContext.Fatalf("failed to build request: %v", err)
	}
	request.AddCookie(c.cookie)
	if body != nil {
		request.Header.Set("Content-Type", jsonContentType)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		c.testContext.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer response.Body.Close()
	payload, err := io.ReadAll(response.Body)
	if err != nil {
		c.testContext.Fatalf("failed to read response: %v", err)
	}
	if target != nil && response.StatusCode < http.StatusMultipleChoices {
		if raw, ok := target.(*[]byte); ok {
			*raw = payload
		} else if err := json.Unmarshal(payload, target); err != nil {
			c.testContext.Fatalf("failed to decode %s %s response %q: %v", method, path, payload, err)
		}
	}
	return response.StatusCode
}

type operationResult struct {
	Applied   bool   `json:"applied"`
	CreatedID string `json:"created_id"`
	State     struct {
		draft.Snapshot
		Totals struct {
			Calories float64 `json:"calories"`
		} `json:"totals"`
	} `json:"state"`
}

func (c flowClient) operate(planID string, request map[string]any) operationResult {
	c.testContext.Helper()
	var result operationResult
	if status := c.call(http.MethodPost, "/plans/"+planID+"/draft/operations", request, &result); status != http.StatusOK {
		c.testContext.Fatalf("operation %v failed with status %d", request["type"], status)
	}
	return result
}

func TestCoachingDraftFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(testContext.TempDir(), "dietops.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	ids := identifiers.NewUUIDProvider()
	foodService, err := foods.NewService(foods.ServiceConfig{Database: db, IDProvider: ids})
	if err != nil {
		testContext.Fatalf("failed to build foods service: %v", err)
	}
	clientService, err := clients.NewService(clients.ServiceConfig{Database: db, IDProvider: ids})
	if err != nil {
		testContext.Fatalf("failed to build clients service: %v", err)
	}
	planService, err := plans.NewService(plans.ServiceConfig{Database: db, Foods: foodService, Clients: clientService, IDProvider: ids})
	if err != nil {
		testContext.Fatalf("failed to build plans service: %v", err)
	}
	knowledgeService, err := knowledge.NewService(knowledge.ServiceConfig{Database: db, IDProvider: ids})
	if err != nil {
		testContext.Fatalf("failed to build knowledge service: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		testContext.Fatalf("failed to build users service: %v", err)
	}
	registry, err := draft.NewRegistry(draft.RegistryConfig{Loader: planService, IDProvider: ids})
	if err != nil {
		testContext.Fatalf("failed to build draft registry: %v", err)
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(sessionSigningSecret),
		CookieName:    sessionCookieName,
	})
	if err != nil {
		testContext.Fatalf("failed to construct session validator: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:  sessionValidator,
		Profiles:  userService,
		Plans:     planService,
		Foods:     foodService,
		Clients:   clientService,
		Knowledge: knowledgeService,
		Drafts:    registry,
		Exports:   export.NewService(export.ServiceConfig{}),
		Logger:    zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	client := flowClient{
		testContext: testContext,
		baseURL:     testServer.URL,
		cookie: &http.Cookie{
			Name:  sessionCookieName,
			Value: mustMintSessionToken(testContext, sessionSigningSecret, sessionUserID, time.Now()),
		},
	}

	var search struct {
		Foods []foods.Food `json:"foods"`
	}
	if status := client.call(http.MethodGet, "/foods?q=CHICKEN", nil, &search); status != http.StatusOK {
		testContext.Fatalf("unexpected search status: %d", status)
	}
	if len(search.Foods) != 1 || search.Foods[0].Name != "Chicken breast" {
		testContext.Fatalf("expected seeded chicken breast, got %#v", search.Foods)
	}
	chicken := search.Foods[0]

	var plan plans.Plan
	if status := client.call(http.MethodPost, "/plans", map[string]any{"name": "Spring Cut", "objective": "fat_loss"}, &plan); status != http.StatusCreated {
		testContext.Fatalf("unexpected create status: %d", status)
	}
	monday, tuesday := plan.Days[0].ID, plan.Days[1].ID

	if status := client.call(http.MethodPost, "/plans/"+plan.ID+"/draft", nil, nil); status != http.StatusOK {
		testContext.Fatalf("unexpected open status: %d", status)
	}

	lunch := client.operate(plan.ID, map[string]any{"type": "add_meal", "day_id": monday, "name": "Lunch"}).CreatedID
	breakfast := client.operate(plan.ID, map[string]any{"type": "add_meal", "day_id": monday, "name": "Breakfast"}).CreatedID
	client.operate(plan.ID, map[string]any{"type": "add_item", "meal_id": lunch, "food_id": chicken.ID, "quantity": 200})
	client.operate(plan.ID, map[string]any{"type": "update_meal", "meal_id": breakfast, "meal": map[string]any{"time": "07:30"}})

	reordered := client.operate(plan.ID, map[string]any{"type": "reorder_meals", "day_id": monday, "ordered_ids": []string{breakfast, lunch}})
	mondayMeals := reordered.State.Days[0].Meals
	if mondayMeals[0].ID != breakfast || mondayMeals[0].Order != 0 || mondayMeals[1].Order != 1 {
		testContext.Fatalf("expected breakfast first after reorder, got %#v", mondayMeals)
	}

	copied := client.operate(plan.ID, map[string]any{"type": "duplicate_meal", "meal_id": lunch, "target_day_id": tuesday})
	if copied.CreatedID == "" || copied.State.Totals.Calories != 660 {
		testContext.Fatalf("expected duplicated lunch to double calories to 660, got %#v", copied.State.Totals)
	}
	moved := client.operate(plan.ID, map[string]any{"type": "move_meal", "meal_id": breakfast, "target_day_id": tuesday})
	if len(moved.State.Days[0].Meals) != 1 || len(moved.State.Days[1].Meals) != 2 {
		testContext.Fatalf("expected breakfast to move to tuesday, got %#v", moved.State.Days[:2])
	}

	var flushed draft.FlushResult
	if status := client.call(http.MethodPost, "/plans/"+plan.ID+"/draft/flush", nil, &flushed); status != http.StatusOK {
		testContext.Fatalf("unexpected flush status: %d", status)
	}
	if flushed.Dirty {
		testContext.Fatalf("expected clean draft after flush")
	}

	var reopened struct {
		State struct {
			draft.Snapshot
		} `json:"state"`
	}
	if status := client.call(http.MethodPost, "/plans/"+plan.ID+"/draft", map[string]any{"force": true}, &reopened); status != http.StatusOK {
		testContext.Fatalf("unexpected reopen status: %d", status)
	}
	tuesdayMeals := reopened.State.Days[1].Meals
	if len(tuesdayMeals) != 2 || tuesdayMeals[0].Name != "Lunch" || tuesdayMeals[1].Name != "Breakfast" {
		testContext.Fatalf("unexpected persisted tuesday meals %#v", tuesdayMeals)
	}
	if tuesdayMeals[1].Time == nil || *tuesdayMeals[1].Time != "07:30" {
		testContext.Fatalf("expected breakfast time to persist, got %#v", tuesdayMeals[1].Time)
	}
	if reopened.State.Dirty {
		testContext.Fatalf("expected reopened draft to be clean")
	}

	var csvBody []byte
	if status := client.call(http.MethodGet, "/plans/"+plan.ID+"/export?format=csv", nil, &csvBody); status != http.StatusOK {
		testContext.Fatalf("unexpected export status: %d", status)
	}
	if !strings.Contains(string(csvBody), "Chicken breast") {
		testContext.Fatalf("expected export to list chicken breast, got %q", csvBody)
	}
}

func mustMintSessionToken(testContext *testing.T, signingSecret, userID string, now time.Time) string {
	testContext.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.SessionClaims{
		UserID:    userID,
		UserRoles: []string{users.RoleCoach},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.DefaultSessionIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(signingSecret))
	if err != nil {
		testContext.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
