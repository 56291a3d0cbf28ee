package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ZeapZeaper/Zeaper-api-sub000/auth"
	"github.com/ZeapZeaper/Zeaper-api-sub000/cache"
	"github.com/ZeapZeaper/Zeaper-api-sub000/config"
	basketcontroller "github.com/ZeapZeaper/Zeaper-api-sub000/controllers/basket"
	ordercontroller "github.com/ZeapZeaper/Zeaper-api-sub000/controllers/order"
	paymentcontroller "github.com/ZeapZeaper/Zeaper-api-sub000/controllers/payment"
	"github.com/ZeapZeaper/Zeaper-api-sub000/gateway"
	"github.com/ZeapZeaper/Zeaper-api-sub000/mailer"
	"github.com/ZeapZeaper/Zeaper-api-sub000/middleware"
	"github.com/ZeapZeaper/Zeaper-api-sub000/notify"
	"github.com/ZeapZeaper/Zeaper-api-sub000/payments"
	"github.com/ZeapZeaper/Zeaper-api-sub000/queue"
	"github.com/ZeapZeaper/Zeaper-api-sub000/routes"
	"github.com/ZeapZeaper/Zeaper-api-sub000/store"
	"github.com/ZeapZeaper/Zeaper-api-sub000/worker"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// TranslateError turns the postgres unique-violation on orders into
	// gorm.ErrDuplicatedKey, which the store maps to ErrDuplicateOrder.
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatal("migrate schema", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("connect redis", zap.Error(err))
	}

	verifier, err := auth.NewClient(ctx, cfg.FirebaseCredentialsFile, cfg.FirebaseProjectID)
	if err != nil {
		log.Fatal("firebase auth", zap.Error(err))
	}

	jobs := queue.New(rdb, log.Named("queue"), "fulfillment")
	rates := cache.NewRateCache(rdb)

	paystack := gateway.NewPaystack(cfg.PaystackSecretKey)
	stripe := gateway.NewStripe(cfg.StripeSecretKey)
	selector := gateway.Selector{Paystack: paystack, Stripe: stripe}

	service := payments.NewService(
		log.Named("payments"),
		st.Payments, st.Orders, st.Baskets, st.Products,
		st.Vouchers, st.Addresses, st.Users, jobs,
	)

	hub := notify.NewHub(log.Named("hub"))

	producer, err := notify.NewProducer(cfg.KafkaBroker)
	if err != nil {
		log.Fatal("kafka producer", zap.Error(err))
	}
	defer producer.Close()
	notifier := notify.New(producer, hub, cfg.NotificationTopic, log.Named("notify"))

	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom, log.Named("mailer"))

	w := worker.New(log.Named("worker"), jobs, worker.Handlers(notifier, mail, st.Users), int64(cfg.WorkerCount))
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker stopped", zap.Error(err))
		}
	}()

	if cfg.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.Setup(r, routes.Deps{
		Verifier: verifier,
		APIKey:   cfg.APIKey,
		Payments: paymentcontroller.New(
			log.Named("payment"), service, st.Payments, st.Baskets,
			st.Products, st.Vouchers, st.Users, selector, stripe, rates,
			cfg.StripeWebhookSecret,
		),
		Baskets: basketcontroller.New(log.Named("basket"), st.Baskets, st.Products, st.Vouchers, rates),
		Orders:  ordercontroller.New(log.Named("order"), st.Orders),
		Hub:     hub,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("server listening", zap.String("port", cfg.Port), zap.String("mode", cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
}
