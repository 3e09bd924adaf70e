package main

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"recipecost/pkg/auth"
	"recipecost/pkg/store"
)

// TestPostgresFlow runs the main flows against a real Postgres. It is
// opt-in: set DB_DSN_TEST=1 and DB_DSN. Every table is dropped first.
func TestPostgresFlow(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("postgres tests are disabled; set DB_DSN_TEST=1 and DB_DSN to enable")
	}
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()

	db, err := store.Open(os.Getenv("DB_DSN"), log)
	require.NoError(t, err)
	require.NoError(t, store.Reset(db))

	hasher := auth.NewHasher(bcrypt.MinCost)
	seeded, err := store.SeedAdmin(context.Background(), db, "root@example.com", "admin123", hasher, log)
	require.NoError(t, err)
	assert.True(t, seeded)

	cfg := testConfig(t.TempDir())
	srv := newServer(cfg, db, hasher, log)
	require.NoError(t, srv.images.Ensure())
	e := &testEnv{t: t, cfg: cfg, db: db, srv: srv, r: srv.routes()}

	ana, _ := e.register("Ana Silva", "ana@example.com")
	rec := e.call(http.MethodPost, "/api/usuarios/register", gin.H{"name": "Ana", "email": "ANA@example.com", "password": "secret1"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	root, _ := e.login("root@example.com", "admin123")
	rec = e.call(http.MethodGet, "/api/usuarios", nil, root.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	f := orderFixture{
		token:    ana.AccessToken,
		clientID: e.create("/api/clientes", gin.H{"name": "Festa"}, ana.AccessToken),
		cake:     e.create("/api/receitas", gin.H{"name": "Bolo", "price": 30}, ana.AccessToken),
	}
	rec = e.call(http.MethodPost, "/api/pedidos", gin.H{
		"client_id":     f.clientID,
		"profit_margin": 20,
		"recipes":       []gin.H{{"recipe_id": f.cake, "quantity": 2}},
	}, f.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 72.0, decodeBody[orderBody](t, rec).TotalPrice)

	rec = e.call(http.MethodPost, "/api/pedidos", gin.H{"client_id": f.clientID, "recipes": []gin.H{{"recipe_id": f.cake, "quantity": 1}, {"recipe_id": f.cake, "quantity": 1}}}, f.token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.call(http.MethodDelete, "/api/usuarios/"+itoa(ana.User.ID), nil, root.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
