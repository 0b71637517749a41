package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clamflow/frontend/admin"
	"clamflow/frontend/auditlog"
	"clamflow/frontend/dashboard"
	"clamflow/frontend/depuration"
	"clamflow/frontend/exports"
	"clamflow/frontend/intake"
	"clamflow/frontend/login"
	"clamflow/frontend/lots"
	"clamflow/frontend/packaging"
	"clamflow/frontend/processing"
	"clamflow/frontend/quality"
	"clamflow/frontend/uploads"
	"clamflow/infrastructure/audit"
	"clamflow/infrastructure/cache"
	"clamflow/infrastructure/live"
	"clamflow/infrastructure/metrics"
	"clamflow/infrastructure/notify"
	"clamflow/infrastructure/offline"
	"clamflow/infrastructure/rbac"
	sessioncookie "clamflow/infrastructure/session"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

const (
	adminPassword    = "Admin123!Clamflow"
	operatorPassword = "Operator123!Clamflow"
	qualityPassword  = "Quality123!Clamflow"
)

type integrationEnv struct {
	server *httptest.Server
	db     *sqlite.DB
	admin  *admin.Service
}

func setupIntegrationServer(t *testing.T) *integrationEnv {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "server-integration.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqlite.ApplyEmbeddedMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	for _, u := range []struct{ name, role, password string }{
		{"admin", rbac.RoleAdmin, adminPassword},
		{"shucker1", rbac.RoleOperator, operatorPassword},
		{"inspector1", rbac.RoleQuality, qualityPassword},
	} {
		if err := login.UpsertOperator(ctx, db, u.name, u.role, u.password); err != nil {
			t.Fatalf("seed %s: %v", u.name, err)
		}
	}

	hub := live.NewHub(nil)
	db.SetChangeNotifier(hub)
	m := metrics.New()
	center := notify.NewCenter(50, nil)
	auditSvc := audit.NewService()
	queue := offline.NewQueue(db, m, nil)

	svcs := Services{
		Admin:      admin.NewService(db, auditSvc, cache.NewGradeCache(), nil),
		Intake:     intake.NewService(db, auditSvc, queue, center, nil),
		Lots:       lots.NewService(db, auditSvc, m, hub, center, nil),
		Depuration: depuration.NewService(db, auditSvc, center, nil),
		Processing: processing.NewService(db, auditSvc, queue, m, center, nil),
		Packaging:  packaging.NewService(db, auditSvc, queue, m, center, nil),
		Quality:    quality.NewService(db, auditSvc, center, nil),
		Exports:    exports.NewService(db, nil),
		Dashboard:  dashboard.NewService(db, center, nil),
		Uploads:    uploads.NewService(queue, center, nil),
		AuditLog:   auditlog.NewService(db, nil),
	}
	if _, err := svcs.Admin.SeedDefaultGrades(ctx); err != nil {
		t.Fatalf("seed grades: %v", err)
	}

	s := NewServer(Options{Addr: "127.0.0.1:0", AllowedOrigins: []string{"*"}}, db, cache.NewSessionCache(), rbac.New(cache.NewRbacRolesCache()), m, svcs, nil)
	env := &integrationEnv{server: httptest.NewServer(s.Handler()), db: db, admin: svcs.Admin}
	t.Cleanup(func() {
		env.server.Close()
		_ = env.db.Close()
	})
	return env
}

// apiClient talks to the server with a bearer token, like the mobile client.
type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (env *integrationEnv) loginAs(t *testing.T, username, password string) *apiClient {
	t.Helper()
	c := &apiClient{t: t, base: env.server.URL}
	var out struct {
		Token string `json:"token"`
	}
	status := c.do(http.MethodPost, "/api/login", map[string]string{"username": username, "password": password}, &out)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, out.Token)
	c.token = out.Token
	return c
}

func (c *apiClient) do(method, path string, body, out any) int {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	env := setupIntegrationServer(t)

	for _, path := range []string{"/health", "/metrics"} {
		resp, err := http.Get(env.server.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	env := setupIntegrationServer(t)
	anon := &apiClient{t: t, base: env.server.URL}

	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/api/lots", nil, nil))
	anon.token = "not-a-session"
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/api/lots", nil, nil))
	anon.token = ""
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": "wrong-Password1!"}, nil))
}

func TestRolesGateRoutes(t *testing.T) {
	env := setupIntegrationServer(t)
	operator := env.loginAs(t, "shucker1", operatorPassword)
	inspector := env.loginAs(t, "inspector1", qualityPassword)
	adminClient := env.loginAs(t, "admin", adminPassword)

	assert.Equal(t, http.StatusForbidden, operator.do(http.MethodPost, "/api/suppliers", map[string]string{"name": "Bay Clams"}, nil))
	assert.Equal(t, http.StatusCreated, adminClient.do(http.MethodPost, "/api/suppliers", map[string]string{"name": "Bay Clams"}, nil))
	assert.Equal(t, http.StatusOK, operator.do(http.MethodGet, "/api/suppliers", nil, nil))
	assert.Equal(t, http.StatusForbidden, inspector.do(http.MethodPost, "/api/lots", map[string]any{"receiptIds": []int64{1}}, nil))
	assert.Equal(t, http.StatusForbidden, operator.do(http.MethodGet, "/api/operators", nil, nil))

	var me struct {
		Operator    models.Operator `json:"operator"`
		Permissions []string        `json:"permissions"`
	}
	require.Equal(t, http.StatusOK, inspector.do(http.MethodGet, "/api/me", nil, &me))
	assert.Equal(t, "inspector1", me.Operator.Username)
	assert.Contains(t, me.Permissions, "LOT_RELEASE")
	assert.NotContains(t, me.Permissions, "LOTS_CREATE")

	require.Equal(t, http.StatusOK, adminClient.do(http.MethodGet, "/api/me", nil, &me))
	assert.Contains(t, me.Permissions, "OPERATORS_EDIT")
	assert.Contains(t, me.Permissions, "LOTS_CREATE")
}

func TestLotLifecycleOverHTTP(t *testing.T) {
	env := setupIntegrationServer(t)
	adminClient := env.loginAs(t, "admin", adminPassword)
	operator := env.loginAs(t, "shucker1", operatorPassword)
	inspector := env.loginAs(t, "inspector1", qualityPassword)

	var supplier models.Supplier
	require.Equal(t, http.StatusCreated, adminClient.do(http.MethodPost, "/api/suppliers", map[string]string{"name": "Estuary Co"}, &supplier))

	var ids []int64
	for _, w := range []float64{100, 50} {
		var rm models.RawMaterialReceipt
		require.Equal(t, http.StatusCreated, operator.do(http.MethodPost, "/api/receipts", map[string]any{"supplierId": supplier.ID, "weight": w}, &rm))
		ids = append(ids, rm.ID)
	}

	var lot models.Lot
	require.Equal(t, http.StatusCreated, operator.do(http.MethodPost, "/api/lots", map[string]any{"receiptIds": ids}, &lot))
	assert.Equal(t, 150.0, lot.TotalWeight)
	assert.Equal(t, http.StatusConflict, operator.do(http.MethodPost, "/api/lots", map[string]any{"receiptIds": ids}, nil))

	lotPath := "/api/lots/" + lot.LotNumber
	require.Equal(t, http.StatusCreated, operator.do(http.MethodPost, lotPath+"/depuration/start", map[string]any{"tankNumber": "T2", "temperature": 14.5, "salinity": 31}, nil))
	require.Equal(t, http.StatusOK, operator.do(http.MethodPost, lotPath+"/depuration/complete", map[string]any{"temperature": 15, "salinity": 30}, nil))
	assert.Equal(t, http.StatusConflict, operator.do(http.MethodPost, lotPath+"/depuration/complete", map[string]any{"temperature": 15, "salinity": 30}, nil))

	var batch models.ProcessingBatch
	require.Equal(t, http.StatusCreated, operator.do(http.MethodPost, "/api/processing/batches", map[string]any{
		"lotNumber": lot.LotNumber,
		"boxes": []map[string]any{
			{"type": "shell-on", "weight": 40, "boxNumber": "SO000001", "grade": "A"},
			{"type": "meat", "weight": 20, "boxNumber": "CM000002", "grade": "B"},
		},
	}, &batch))
	assert.Equal(t, 60.0, batch.YieldPercentage)

	var pkg models.Package
	require.Equal(t, http.StatusCreated, operator.do(http.MethodPost, "/api/packages", map[string]any{
		"lotNumber": lot.LotNumber, "boxNumber": "SO000001", "type": "shell-on", "weight": 20, "grade": "A",
	}, &pkg))
	var scanned models.Package
	require.Equal(t, http.StatusOK, inspector.do(http.MethodPost, "/api/packages/scan", map[string]string{"payload": pkg.QRPayload}, &scanned))
	assert.Equal(t, "SO000001", scanned.BoxNumber)

	release := map[string]any{
		"qualityCheckPassed": true, "yieldVerified": true, "documentationComplete": true,
		"packagingCorrect": true, "labelingComplete": true,
	}
	assert.Equal(t, http.StatusForbidden, operator.do(http.MethodPost, lotPath+"/release", release, nil))
	require.Equal(t, http.StatusOK, inspector.do(http.MethodPost, lotPath+"/release", release, nil))

	var detail lots.LotDetail
	require.Equal(t, http.StatusOK, operator.do(http.MethodGet, lotPath, nil, &detail))
	assert.Equal(t, models.LotCompleted, detail.Status)
	assert.Equal(t, models.DepurationCompleted, detail.Depuration.Status)
	assert.Len(t, detail.Batches, 1)
	assert.Equal(t, 1, detail.Packages)

	var trail []auditlog.Entry
	require.Equal(t, http.StatusOK, operator.do(http.MethodGet, lotPath+"/history", nil, &trail))
	actions := make([]string, 0, len(trail))
	for _, e := range trail {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "lot.create")
	assert.Contains(t, actions, "package.create")
	assert.Equal(t, "lot.release", actions[len(actions)-1])
	assert.Equal(t, http.StatusForbidden, operator.do(http.MethodGet, "/api/audit", nil, nil))
	require.Equal(t, http.StatusOK, inspector.do(http.MethodGet, "/api/audit?action=lot.release", nil, &trail))
	require.Len(t, trail, 1)
	assert.Equal(t, "inspector1", trail[0].Actor)

	var summary dashboard.Summary
	require.Equal(t, http.StatusOK, inspector.do(http.MethodGet, "/api/dashboard", nil, &summary))
	assert.Equal(t, 1, summary.LotsByStatus[models.LotCompleted])
	assert.Equal(t, 60.0, summary.AverageYield)
	require.Len(t, summary.YieldTrend, 1)
	assert.True(t, summary.YieldTrend[0].BelowTarget)

	var notes []notify.Notification
	require.Equal(t, http.StatusOK, operator.do(http.MethodGet, "/api/notifications?limit=1", nil, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Lot "+lot.LotNumber+" released", notes[0].Message)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/exports/lots", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+inspector.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows, err := exports.ReadCSV(resp.Body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, lot.LotNumber, rows[0]["lotNumber"])
	assert.Equal(t, "completed", rows[0]["status"])
	assert.Equal(t, "Estuary Co", rows[0]["suppliers"])
}

func TestCookieSessionsNeedCSRFToken(t *testing.T) {
	env := setupIntegrationServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.Post(env.server.URL+"/api/login", "application/json", strings.NewReader(`{"username":"shucker1","password":"`+operatorPassword+`"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A read issues the token cookie.
	resp, err = client.Get(env.server.URL + "/api/me")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	u, err := url.Parse(env.server.URL)
	require.NoError(t, err)
	var token string
	for _, c := range jar.Cookies(u) {
		if c.Name == sessioncookie.CSRFCookieName {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	post := func(withToken bool) int {
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/shell-weights", strings.NewReader(`{"weight":12.5}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if withToken {
			req.Header.Set(csrfHeaderName, token)
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusForbidden, post(false))
	assert.Equal(t, http.StatusCreated, post(true))
}

func TestLogoutEndsSession(t *testing.T) {
	env := setupIntegrationServer(t)
	operator := env.loginAs(t, "shucker1", operatorPassword)

	require.Equal(t, http.StatusOK, operator.do(http.MethodGet, "/api/lots", nil, nil))
	require.Equal(t, http.StatusNoContent, operator.do(http.MethodPost, "/api/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, operator.do(http.MethodGet, "/api/lots", nil, nil))
}
