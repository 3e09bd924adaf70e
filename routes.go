package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipecost/pkg/auth"
	"recipecost/pkg/imagestore"
	"recipecost/pkg/logging"
)

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(s.log))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.Static(imagestore.PublicPrefix, s.cfg.UploadBase)

	requireAuth := auth.RequireAuth(s.issuer)
	requireAdmin := auth.RequireAdmin()

	api := r.Group("/api")

	users := api.Group("/usuarios")
	users.POST("/register", s.registerHandler)
	users.POST("/login", s.loginHandler)
	users.POST("/refresh", s.refreshHandler)
	users.POST("/logout", s.logoutHandler)
	users.GET("/me", requireAuth, s.meHandler)
	users.POST("/me/password", requireAuth, s.changePasswordHandler)
	users.GET("", requireAuth, requireAdmin, s.listUsersHandler)
	users.GET("/:id", requireAuth, requireAdmin, s.getUserHandler)
	users.PATCH("/:id", requireAuth, requireAdmin, s.updateUserHandler)
	users.DELETE("/:id", requireAuth, requireAdmin, s.deleteUserHandler)

	ingredients := api.Group("/ingredientes", requireAuth)
	ingredients.GET("", s.listIngredientsHandler)
	ingredients.POST("", s.createIngredientHandler)
	ingredients.GET("/:id", s.getIngredientHandler)
	ingredients.PUT("/:id", s.replaceIngredientHandler)
	ingredients.PATCH("/:id", s.patchIngredientHandler)
	ingredients.DELETE("/:id", s.deleteIngredientHandler)

	recipes := api.Group("/receitas", requireAuth)
	recipes.GET("", s.listRecipesHandler)
	recipes.POST("", s.createRecipeHandler)
	recipes.GET("/:id", s.getRecipeHandler)
	recipes.PUT("/:id", s.replaceRecipeHandler)
	recipes.PATCH("/:id", s.patchRecipeHandler)
	recipes.DELETE("/:id", s.deleteRecipeHandler)
	recipes.POST("/:id/ingredientes", s.addRecipeIngredientHandler)
	recipes.DELETE("/:id/ingredientes/:ingredientId", s.removeRecipeIngredientHandler)
	recipes.POST("/:id/imagem", s.uploadRecipeImageHandler)

	clients := api.Group("/clientes", requireAuth)
	clients.GET("", s.listClientsHandler)
	clients.POST("", s.createClientHandler)
	clients.GET("/:id", s.getClientHandler)
	clients.PUT("/:id", s.replaceClientHandler)
	clients.PATCH("/:id", s.patchClientHandler)
	clients.DELETE("/:id", s.deleteClientHandler)

	orders := api.Group("/pedidos", requireAuth)
	orders.GET("", s.listOrdersHandler)
	orders.POST("", s.createOrderHandler)
	orders.GET("/:id", s.getOrderHandler)
	orders.PUT("/:id", s.replaceOrderHandler)
	orders.PATCH("/:id", s.patchOrderHandler)
	orders.DELETE("/:id", s.deleteOrderHandler)
	orders.POST("/:id/receitas", s.addOrderRecipeHandler)
	orders.DELETE("/:id/receitas/:recipeId", s.removeOrderRecipeHandler)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"erro": "Rota não encontrada."})
	})
	return r
}
