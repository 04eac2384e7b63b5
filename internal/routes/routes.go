package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/retrofails/backend/internal/controllers"
	"github.com/retrofails/backend/internal/middleware"
	"github.com/retrofails/backend/internal/models"
	"github.com/retrofails/backend/internal/services"
	"gorm.io/gorm"
)

// Dependencies is everything the API needs, already wired for the configured
// backend mode.
type Dependencies struct {
	Incidents  services.IncidentSource
	Auth       services.AuthProvider
	Images     services.ImageStore
	Verifier   services.TokenVerifier
	Catalog    *services.CatalogService
	Navigation *services.NavigationService
	Cookies    controllers.CookieSettings
	// NavigationTTL is how long an idle navigation session is kept.
	NavigationTTL time.Duration
	// Users is set only with the local auth provider; it enables the
	// account admin routes.
	Users *gorm.DB
}

// SetupRoutes configures all application routes
func SetupRoutes(r *gin.Engine, deps Dependencies) {
	authController := controllers.NewAuthController(deps.Auth, deps.Cookies)
	incidentController := controllers.NewIncidentController(deps.Incidents, deps.Images, deps.Catalog, deps.Navigation)
	catalogController := controllers.NewCatalogController(deps.Catalog)
	navigationController := controllers.NewNavigationController(deps.Navigation, deps.Incidents, deps.Cookies.Secure, deps.NavigationTTL)

	requireSession := middleware.RequireSession(deps.Verifier)

	api := r.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/signin", authController.SignIn)
			auth.POST("/signup", authController.SignUp)
			auth.POST("/signout", authController.SignOut)
			auth.POST("/refresh", authController.Refresh)
			auth.POST("/recover", authController.Recover)
			auth.POST("/confirm", authController.Confirm)
			auth.GET("/session", requireSession, authController.Session)
		}

		// Incidents; reads are public, writes need a session
		incidents := api.Group("/incidents")
		{
			incidents.GET("", incidentController.List)
			incidents.GET("/:id", incidentController.Get)
			incidents.GET("/:id/view", incidentController.View)
			incidents.POST("", requireSession, incidentController.Create)
			incidents.PUT("/:id", requireSession, incidentController.Update)
			incidents.DELETE("", requireSession, incidentController.Delete)
		}

		catalog := api.Group("/catalog")
		{
			catalog.GET("", catalogController.Browse)
			catalog.GET("/categories", catalogController.Categories)
		}

		navigation := api.Group("/navigation")
		{
			navigation.GET("", navigationController.State)
			navigation.PUT("/criteria", navigationController.SetCriteria)
			navigation.POST("/decades/:decade", navigationController.OpenDecade)
			navigation.POST("/years/:year", navigationController.OpenYear)
			navigation.POST("/incidents/:index", navigationController.OpenIncident)
			navigation.POST("/click", navigationController.Click)
			navigation.POST("/next", navigationController.Next)
			navigation.POST("/previous", navigationController.Previous)
			navigation.POST("/up", navigationController.Up)
			navigation.POST("/root", navigationController.Root)
			navigation.GET("/selection", navigationController.Selection)
			navigation.POST("/selection/toggle", navigationController.ToggleSelectionMode)
			navigation.DELETE("/selection", requireSession, navigationController.DeleteSelected)
		}

		if deps.Users != nil {
			userController := controllers.NewUserController(deps.Users)
			users := api.Group("/users")
			users.Use(requireSession, middleware.RequireRole(string(models.RoleAdmin)))
			{
				users.GET("", userController.GetUsers)
				users.PUT("/:id/role", userController.UpdateUserRole)
				users.DELETE("/:id", userController.RemoveUser)
			}
		}
	}
}
