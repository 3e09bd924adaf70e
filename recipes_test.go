package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipecost/models"
)

type recipeBody struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url"`
	ThumbURL    string  `json:"thumb_url"`
	Cost        float64 `json:"cost"`
	Ingredients []struct {
		IngredientID uint    `json:"ingredient_id"`
		Name         string  `json:"name"`
		Quantity     float64 `json:"quantity"`
		Cost         float64 `json:"cost"`
	} `json:"ingredients"`
}

func TestRecipeWithIngredientsAndCost(t *testing.T) {
	e := setupTestServer(t)
	ana, _ := e.register("Ana", "ana@example.com")

	flour := e.create("/api/ingredientes", gin.H{"name": "Farinha", "price": 2, "unit": "kg"}, ana.AccessToken)
	sugar := e.create("/api/ingredientes", gin.H{"name": "Açúcar", "price": 3, "unit": "kg"}, ana.AccessToken)
	eggs := e.create("/api/ingredientes", gin.H{"name": "Ovo", "price": 0.5, "unit": "un"}, ana.AccessToken)

	rec := e.call(http.MethodPost, "/api/receitas", gin.H{
		"name":  "Bolo",
		"price": 30,
		"ingredients": []gin.H{
			{"ingredient_id": flour, "quantity": 0.5},
			{"ingredient_id": sugar, "quantity": 2},
		},
	}, ana.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	r := decodeBody[recipeBody](t, rec)
	assert.Equal(t, "Bolo", r.Name)
	assert.Equal(t, 7.0, r.Cost)
	require.Len(t, r.Ingredients, 2)
	assert.Equal(t, "Farinha", r.Ingredients[0].Name)
	assert.Equal(t, 1.0, r.Ingredients[0].Cost)
	path := "/api/receitas/" + itoa(r.ID)

	rec = e.call(http.MethodPost, path+"/ingredientes", gin.H{"ingredient_id": eggs, "quantity": 4}, ana.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 9.0, decodeBody[recipeBody](t, rec).Cost)

	rec = e.call(http.MethodPost, path+"/ingredientes", gin.H{"ingredient_id": eggs, "quantity": 1}, ana.AccessToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, msgIngredientLinked, errorBody(t, rec))

	rec = e.call(http.MethodPost, path+"/ingredientes", gin.H{"ingredient_id": eggs, "quantity": 0}, ana.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// ingredient price changes flow into the cost
	rec = e.call(http.MethodPatch, "/api/ingredientes/"+itoa(sugar), gin.H{"price": 4}, ana.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.call(http.MethodGet, path, nil, ana.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 11.0, decodeBody[recipeBody](t, rec).Cost)

	rec = e.call(http.MethodDelete, path+"/ingredientes/"+itoa(eggs), nil, ana.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.call(http.MethodDelete, path+"/ingredientes/"+itoa(eggs), nil, ana.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// PUT leaves the lines alone
	rec = e.call(http.MethodPut, path, gin.H{"name": "Bolo simples", "price": 25}, ana.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[recipeBody](t, rec)
	assert.Equal(t, "Bolo simples", got.Name)
	assert.Equal(t, 25.0, got.Price)
	assert.Len(t, got.Ingredients, 2)
	assert.Equal(t, 9.0, got.Cost)

	rec = e.call(http.MethodPatch, path, gin.H{"description": "Receita da avó"}, ana.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.call(http.MethodGet, "/api/receitas", nil, ana.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]recipeBody](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 9.0, list[0].Cost)

	rec = e.call(http.MethodDelete, path, nil, ana.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	var n int64
	require.NoError(t, e.db.Model(&models.RecipeIngredient{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRecipeCreateRollsBackOnForeignIngredient(t *testing.T) {
	e := setupTestServer(t)
	ana, _ := e.register("Ana", "ana@example.com")
	bia, _ := e.register("Bia", "bia@example.com")

	mine := e.create("/api/ingredientes", gin.H{"name": "Leite", "price": 4}, ana.AccessToken)
	theirs := e.create("/api/ingredientes", gin.H{"name": "Manteiga", "price": 9}, bia.AccessToken)

	rec := e.call(http.MethodPost, "/api/receitas", gin.H{
		"name": "Pudim",
		"ingredients": []gin.H{
			{"ingredient_id": mine, "quantity": 1},
			{"ingredient_id": theirs, "quantity": 1},
		},
	}, ana.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgIngredientNotFound, errorBody(t, rec))

	var recipes, lines int64
	require.NoError(t, e.db.Model(&models.Recipe{}).Count(&recipes).Error)
	require.NoError(t, e.db.Model(&models.RecipeIngredient{}).Count(&lines).Error)
	assert.Zero(t, recipes)
	assert.Zero(t, lines)
}

func TestRecipeUsedByOrderCannotBeDeleted(t *testing.T) {
	e := setupTestServer(t)
	ana, _ := e.register("Ana", "ana@example.com")

	recipeID := e.create("/api/receitas", gin.H{"name": "Torta", "price": 40}, ana.AccessToken)
	clientID := e.create("/api/clientes", gin.H{"name": "Maria"}, ana.AccessToken)
	e.create("/api/pedidos", gin.H{"client_id": clientID, "recipes": []gin.H{{"recipe_id": recipeID, "quantity": 1}}}, ana.AccessToken)

	rec := e.call(http.MethodDelete, "/api/receitas/"+itoa(recipeID), nil, ana.AccessToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Receita usada em pedidos.", errorBody(t, rec))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRecipeImageUpload(t *testing.T) {
	e := setupTestServer(t)
	ana, _ := e.register("Ana", "ana@example.com")
	bia, _ := e.register("Bia", "bia@example.com")
	recipeID := e.create("/api/receitas", gin.H{"name": "Brigadeiro", "price": 2}, ana.AccessToken)
	path := "/api/receitas/" + itoa(recipeID) + "/imagem"

	body, ct := multipartBody(t, "image", "foto.png", pngBytes(t, 200, 100))
	rec := performRequest(e.r, http.MethodPost, path, body, ana.AccessToken, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[recipeBody](t, rec)
	require.True(t, strings.HasPrefix(first.ImageURL, "/uploads/recipes/"), first.ImageURL)
	require.NotEmpty(t, first.ThumbURL)

	rec = performRequest(e.r, http.MethodGet, first.ImageURL, nil, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = performRequest(e.r, http.MethodGet, first.ThumbURL, nil, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// a new upload replaces the stored pair
	body, ct = multipartBody(t, "image", "outra.png", pngBytes(t, 50, 50))
	rec = performRequest(e.r, http.MethodPost, path, body, ana.AccessToken, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decodeBody[recipeBody](t, rec)
	assert.NotEqual(t, first.ImageURL, second.ImageURL)
	_, err := os.Stat(filepath.Join(e.cfg.UploadBase, strings.TrimPrefix(first.ImageURL, "/uploads/")))
	assert.True(t, os.IsNotExist(err))

	body, ct = multipartBody(t, "image", "nota.txt", []byte("isto não é uma imagem"))
	rec = performRequest(e.r, http.MethodPost, path, body, ana.AccessToken, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errorBody(t, rec)

	body, ct = multipartBody(t, "arquivo", "foto.png", pngBytes(t, 10, 10))
	rec = performRequest(e.r, http.MethodPost, path, body, ana.AccessToken, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Envie a imagem no campo 'image'.", errorBody(t, rec))

	body, ct = multipartBody(t, "image", "foto.png", pngBytes(t, 10, 10))
	rec = performRequest(e.r, http.MethodPost, path, body, bia.AccessToken, ct)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.call(http.MethodDelete, "/api/receitas/"+itoa(recipeID), nil, ana.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err = os.Stat(filepath.Join(e.cfg.UploadBase, strings.TrimPrefix(second.ImageURL, "/uploads/")))
	assert.True(t, os.IsNotExist(err))
}
