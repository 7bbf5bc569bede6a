package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GovindKumar26/petstore-api/configs"
	"github.com/GovindKumar26/petstore-api/internal/adapter/cache"
	apihttp "github.com/GovindKumar26/petstore-api/internal/adapter/http"
	"github.com/GovindKumar26/petstore-api/internal/adapter/http/middleware"
	"github.com/GovindKumar26/petstore-api/internal/adapter/kafka"
	"github.com/GovindKumar26/petstore-api/internal/adapter/notify"
	"github.com/GovindKumar26/petstore-api/internal/adapter/observ"
	"github.com/GovindKumar26/petstore-api/internal/adapter/payment"
	"github.com/GovindKumar26/petstore-api/internal/adapter/queue"
	"github.com/GovindKumar26/petstore-api/internal/adapter/repo"
	"github.com/GovindKumar26/petstore-api/internal/adapter/shipping"
	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init(cfg.App.Name, cfg.App.LogFile)
	log := logging.New("bootstrap")

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(ctx)
	cancel()
	if err != nil {
		return nil, nil, err
	}

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, err
	}

	// init rabbitmq
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}

	// repos + caches
	orderRepo := repo.NewMySQLOrderRepo(db)
	productRepo := repo.NewMySQLProductRepo(db)
	discountRepo := repo.NewMySQLDiscountRepo(db)
	taxRepo := repo.NewMySQLTaxRepo(db)
	userRepo := repo.NewMySQLUserRepo(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	orderCache := cache.NewRedisCache(rdb, cfg.Cache.TTL)

	// providers
	notifier, err := queue.NewRabbitNotifier(ch)
	if err != nil {
		return nil, nil, err
	}
	payu := payment.NewPayU(payment.PayUConfig{
		MerchantKey: cfg.PayU.Key,
		Salt:        cfg.PayU.Salt,
		BaseURL:     cfg.PayU.BaseURL,
		SuccessURL:  cfg.App.BaseURL + "/api/payments/callback/success",
		FailureURL:  cfg.App.BaseURL + "/api/payments/callback/failure",
	})
	webhook := payment.NewWebhookHMAC(cfg.Webhook.Secret)
	courier := shipping.NewShiprocket(shipping.ShiprocketConfig{
		BaseURL:        cfg.Shiprocket.BaseURL,
		Email:          cfg.Shiprocket.Email,
		Password:       cfg.Shiprocket.Password,
		PickupLocation: cfg.Shiprocket.PickupLocation,
		Timeout:        cfg.Shiprocket.Timeout,
	})

	// usecases
	inventory := usecase.NewInventory(orderRepo, productRepo)
	discounts := usecase.NewDiscountEngine(discountRepo, orderRepo)
	createUC := usecase.NewCreateOrder(orderRepo, productRepo, taxRepo, discounts, inventory, idem)
	cancelUC := usecase.NewCancelOrder(orderRepo, inventory, notifier)
	initiateUC := usecase.NewInitiatePayment(orderRepo, payu)
	reconciler := usecase.NewReconciler(orderRepo, inventory, idem, notifier, payu, webhook)
	shipUC := usecase.NewShipOrder(orderRepo, courier, notifier)
	tracking := usecase.NewTrackingSync(orderRepo, courier, notifier)
	refunds := usecase.NewRefundService(orderRepo, payu, notifier)
	returns := usecase.NewReturnService(orderRepo, inventory, courier)
	statusUC := usecase.NewUpdateStatus(orderRepo, shipUC, tracking, cancelUC)
	sweep := usecase.NewExpirySweep(orderRepo, inventory)

	// consumers
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})
	if err := setupQueue(ch, orderRepo, userRepo, mailer); err != nil {
		return nil, nil, err
	}

	bg, stopBg := context.WithCancel(context.Background())
	if err := setupKafkaListener(bg, cfg, orderRepo, tracking, orderCache); err != nil {
		stopBg()
		return nil, nil, err
	}
	startJobs(bg, cfg, sweep, tracking)

	// handlers + router
	oh := apihttp.NewOrderHandler(createUC, cancelUC, returns, orderRepo, productRepo, orderCache, apihttp.ShippingRates{
		FlatRate:  domain.Paise(cfg.Shipping.FlatRatePaise),
		FreeAbove: domain.Paise(cfg.Shipping.FreeAbovePaise),
	})
	ph := apihttp.NewPaymentHandler(initiateUC, reconciler, orderCache, cfg.App.StoreURL)
	ah := apihttp.NewAdminHandler(statusUC, refunds, returns, orderRepo, orderCache)
	auth := apihttp.NewAuthHandler(apihttp.AuthConfig{
		JWTSecret: cfg.Security.JWTSecret,
		Issuer:    cfg.Security.Issuer,
		Audience:  cfg.Security.Audience,
		TTL:       cfg.Security.TTL,
	}, userRepo)
	authz := middleware.NewAuthz(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.Audience, userRepo)
	router := apihttp.NewRouter(oh, ph, ah, auth, authz)

	log.Info("store-api wired", "env", cfg.App.Name)

	cleanup := func() {
		stopBg()
		_ = ch.Close()
		_ = conn.Close()
		_ = rdb.Close()
		_ = db.Close()
	}
	return &App{Router: router}, cleanup, nil
}

func setupQueue(ch *amqp091.Channel, orders usecase.OrderRepo, users usecase.UserRepo, mailer queue.Mailer) error {
	h := queue.NewNotifyHandler(orders, users, mailer)

	router := queue.NewRouter(ch, queue.WithPrefetch(50))
	router.Register(queue.NotifyQueue, queue.JSONHandler[usecase.OrderEventMsg]{HandleFunc: h.HandleEvent})

	return router.Start()
}

func setupKafkaListener(ctx context.Context, cfg configs.Config, orders usecase.OrderRepo, tracking *usecase.TrackingSync, orderCache usecase.OrderCache) error {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return fmt.Errorf("kafka consumer group: %w", err)
	}

	h := kafka.NewTrackingEventHandler(orders, tracking, orderCache)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicTracking}, h.Handle)
	consumer.Logger = logging.New("kafka-tracking")

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			consumer.Logger.Error("kafka consumer stopped", "err", err)
		}
	}()
	return nil
}

// startJobs runs the two periodic sweeps: pending-order expiry and the
// shipment tracking poll.
func startJobs(ctx context.Context, cfg configs.Config, sweep *usecase.ExpirySweep, tracking *usecase.TrackingSync) {
	log := logging.New("jobs")

	every := func(d time.Duration, name string, run func(context.Context) error) {
		if d <= 0 {
			return
		}
		go func() {
			t := time.NewTicker(d)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if err := run(logging.WithCtx(ctx, log)); err != nil {
						log.Error("job failed", "job", name, "err", err)
					}
				}
			}
		}()
	}

	every(cfg.Jobs.ExpirySweepEvery, "expiry-sweep", func(ctx context.Context) error {
		n, err := sweep.Run(ctx)
		if n > 0 {
			observ.OrdersExpired.Add(float64(n))
			log.Info("expired pending orders", "count", n)
		}
		return err
	})
	every(cfg.Jobs.TrackingPollEvery, "tracking-poll", tracking.Run)
}
