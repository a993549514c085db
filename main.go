package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Tharoon321/go-tours/config"
	"github.com/Tharoon321/go-tours/controllers"
	"github.com/Tharoon321/go-tours/middleware"
	"github.com/Tharoon321/go-tours/models"
	"github.com/Tharoon321/go-tours/utils"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client, db, err := config.ConnectDB(cfg)
	if err != nil {
		slog.Error("mongo connect error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to MongoDB", slog.String("db", cfg.MongoDB))

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	// collaborators
	signer := utils.NewTokenSigner(cfg.JWTSecret, cfg.JWTExpiresIn, cfg.JWTIssuer)
	hasher := utils.NewPasswordHasher(cfg.BcryptCost)
	mailer := &utils.SMTPMailer{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
	}

	// stores
	users := models.NewUserStore(db)
	userDocs := models.NewMongoStore[models.User](db, "users")
	tours := models.NewTourStore(db)
	reviews := models.NewMongoStore[models.Review](db, "reviews")

	// controllers
	auth := &controllers.AuthController{
		Users:         users,
		Signer:        signer,
		Hasher:        hasher,
		Mailer:        mailer,
		ResetTokenTTL: cfg.ResetTokenTTL,
	}
	user := &controllers.UserController{Users: users, Store: userDocs}
	tour := &controllers.TourController{Store: tours}

	limiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	defer limiter.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	if !cfg.Production() {
		router.Use(gin.Logger())
	}
	router.Use(middleware.ErrorHandler(cfg.Production()))
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(middleware.MetricsHandler()))

	protect := middleware.Auth(signer, users)

	api := router.Group("/api", limiter.Middleware())
	v1 := api.Group("/v1")
	{
		usersGroup := v1.Group("/users")
		{
			usersGroup.POST("/signup", auth.Signup)
			usersGroup.POST("/login", auth.Login)
			usersGroup.POST("/forgot-password", auth.ForgotPassword)
			usersGroup.PATCH("/reset-password/:token", auth.ResetPassword)

			// everything below requires a session
			authed := usersGroup.Group("", protect)
			{
				authed.PATCH("/change-password", auth.UpdatePassword)
				authed.GET("/me", user.Me)
				authed.PATCH("/me", user.UpdateMe)
				authed.DELETE("/deactivate", user.Deactivate)

				admin := authed.Group("", middleware.RequireRole(models.RoleAdmin))
				{
					admin.GET("", controllers.GetAll[models.User](userDocs, activeUsersOnly))
					admin.POST("", user.CreateUser)
					admin.GET("/:id", controllers.GetOne[models.User](userDocs))
					admin.PATCH("/:id", user.UpdateUser)
					admin.DELETE("/:id", controllers.DeleteOne[models.User](userDocs))
				}
			}
		}

		toursGroup := v1.Group("/tours")
		{
			toursGroup.GET("/top-5-cheap", controllers.AliasTopTours, controllers.GetAll[models.Tour](tours.MongoStore, nil))
			toursGroup.GET("/stats", tour.Stats)
			toursGroup.GET("/monthly-plan/:year", tour.MonthlyPlan)
			toursGroup.GET("/tours-within/:distance/center/:latlng/unit/:unit", tour.ToursWithin)
			toursGroup.GET("/distances/:latlng/unit/:unit", tour.Distances)

			toursGroup.GET("", protect, controllers.GetAll[models.Tour](tours.MongoStore, nil))
			toursGroup.POST("", protect, controllers.CreateOne[models.Tour](tours.MongoStore, controllers.PrepareTour))
			toursGroup.GET("/:id", protect, controllers.GetOne[models.Tour](tours.MongoStore, models.TourReviewsLookup))
			toursGroup.PATCH("/:id", protect, controllers.UpdateOne[models.Tour](tours.MongoStore))
			toursGroup.DELETE("/:id", protect,
				middleware.RequireRole(models.RoleAdmin, models.RoleLeadGuide),
				controllers.DeleteOne[models.Tour](tours.MongoStore))

			nested := toursGroup.Group("/:id/reviews", protect)
			{
				nested.GET("", controllers.GetAll[models.Review](reviews, controllers.TourScopedFilter))
				nested.POST("",
					middleware.RequireRole(models.RoleUser),
					controllers.CreateOne[models.Review](reviews, controllers.PrepareReview))
			}
		}

		reviewsGroup := v1.Group("/reviews", protect)
		{
			reviewsGroup.GET("", controllers.GetAll[models.Review](reviews, nil))
			reviewsGroup.POST("",
				middleware.RequireRole(models.RoleUser),
				controllers.CreateOne[models.Review](reviews, controllers.PrepareReview))
			reviewsGroup.GET("/:id", controllers.GetOne[models.Review](reviews, models.ReviewAuthorLookup))
			reviewsGroup.PATCH("/:id", controllers.UpdateOne[models.Review](reviews))
			reviewsGroup.DELETE("/:id",
				middleware.RequireRole(models.RoleAdmin, models.RoleUser),
				controllers.DeleteOne[models.Review](reviews))
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("server started", slog.String("port", cfg.Port), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	if err := client.Disconnect(ctx); err != nil {
		slog.Error("error disconnecting MongoDB", slog.String("error", err.Error()))
	} else {
		slog.Info("MongoDB disconnected")
	}
}

// activeUsersOnly keeps deactivated accounts out of admin listings.
func activeUsersOnly(*gin.Context) bson.M {
	return bson.M{"active": bson.M{"$ne": false}}
}
