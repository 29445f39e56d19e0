package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Yusufzhafir/go-dexmatcher/internal/engine"
	"github.com/Yusufzhafir/go-dexmatcher/internal/ledger"
	"github.com/Yusufzhafir/go-dexmatcher/internal/registry"
	orderrepo "github.com/Yusufzhafir/go-dexmatcher/internal/repository/order"
	"github.com/Yusufzhafir/go-dexmatcher/internal/router"
	"github.com/Yusufzhafir/go-dexmatcher/internal/router/middleware"
	"github.com/Yusufzhafir/go-dexmatcher/internal/settlement"
	orderusecase "github.com/Yusufzhafir/go-dexmatcher/internal/usecase/order"
	"github.com/Yusufzhafir/go-dexmatcher/internal/websocket"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	tb "github.com/tigerbeetle/tigerbeetle-go"
	tbTypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"

	_ "github.com/lib/pq"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}

	matcherPK, matcherSK, err := matcherKeys(os.Getenv("MATCHER_SEED"))
	if err != nil {
		log.Fatal().Err(err).Msg("matcher keys")
	}

	db, err := connectDB()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect")
	}
	repo := orderrepo.NewRepository(db)
	assets := registry.NewSQLRegistry(db)

	balances, applier, err := connectLedger(log)
	if err != nil {
		log.Fatal().Err(err).Msg("ledger connect")
	}

	settlementFee := envUint("SETTLEMENT_FEE", 100_000)
	builder := settlement.NewBuilder(matcherPK, matcherSK, model.Amount(settlementFee), log)
	sink := orderusecase.NewRecordingSink(db, repo, applier, log)

	hub := websocket.NewHub(log)
	go hub.Run(rootCtx)

	pairs, err := parsePairs(os.Getenv("PAIRS"))
	if err != nil {
		log.Fatal().Err(err).Msg("pair config")
	}
	drivers := make(map[model.AssetPair]*orderusecase.Driver, len(pairs))
	for _, pair := range pairs {
		book := engine.NewOrderBook(pair)
		d := orderusecase.NewDriver(orderusecase.Options{
			Pair:     pair,
			Matcher:  matcherPK,
			Engine:   engine.NewEngine(book, log),
			Registry: assets,
			Balances: balances,
			Builder:  builder,
			Sink:     sink,
			Clock:    func() int64 { return time.Now().UnixMilli() },
			Log:      log,
		})
		d.RegisterHandler(eventPublisher(hub, pair))
		d.Start()
		defer d.Stop()
		drivers[pair] = d
		log.Info().Str("pair", pair.String()).Msg("order book started")
	}

	serveMux := http.NewServeMux()
	serveMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWS(hub, w, r)
	})
	router.BindRouter(router.BindRouterOpts{
		ServerRouter: serveMux,
		Drivers:      drivers,
		TokenMaker:   middleware.NewJWTMaker(os.Getenv("JWT_SECRET")),
		Log:          log,
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := http.Server{
		Addr:    addr,
		Handler: router.Cors(serveMux),
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	// Periodic expiry sweep over every book.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, d := range drivers {
					if err := d.ExpireOrders(rootCtx); err != nil {
						log.Warn().Err(err).Msg("expiry sweep")
					}
				}
			case <-rootCtx.Done():
				return
			}
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed, forcing close")
		_ = server.Close()
	}
	log.Info().Msg("server stopped")
}

func matcherKeys(seed string) (crypto.PublicKey, crypto.SecretKey, error) {
	raw, err := crypto.DecodeBase58(seed, 64)
	if err != nil {
		return crypto.PublicKey{}, crypto.SecretKey{}, fmt.Errorf("MATCHER_SEED: %w", err)
	}
	return crypto.GenerateKeyPair(raw)
}

func connectDB() (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"), os.Getenv("DB_NAME"),
	)
	return sqlx.Connect("postgres", dsn)
}

// connectLedger picks TigerBeetle when configured and falls back to the
// in-memory store for single-node development runs.
func connectLedger(log zerolog.Logger) (ledger.BalanceSource, orderusecase.Applier, error) {
	addr := os.Getenv("TB_ADDRESS")
	if addr == "" {
		log.Warn().Msg("TB_ADDRESS not set, using in-memory balances")
		mem := ledger.NewInMemory()
		return mem, mem, nil
	}
	clusterID, err := strconv.ParseUint(os.Getenv("TB_CLUSTER_ID"), 0, 64)
	if err != nil {
		clusterID = 0
	}
	client, err := tb.NewClient(tbTypes.ToUint128(clusterID), []string{addr})
	if err != nil {
		return nil, nil, fmt.Errorf("tigerbeetle client: %w", err)
	}
	ledgerID := uint32(envUint("TB_LEDGER_ID", 1))
	l := ledger.NewTigerBeetle(client, ledgerID, log)
	return l, l, nil
}

// parsePairs reads "amountAsset/priceAsset" entries separated by commas;
// "native" or an empty string names the native asset.
func parsePairs(s string) ([]model.AssetPair, error) {
	if s == "" {
		return nil, errors.New("PAIRS must list at least one market")
	}
	var pairs []model.AssetPair
	for _, entry := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(entry), "/")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed pair %q", entry)
		}
		amountAsset, err := parseAsset(parts[0])
		if err != nil {
			return nil, fmt.Errorf("pair %q: %w", entry, err)
		}
		priceAsset, err := parseAsset(parts[1])
		if err != nil {
			return nil, fmt.Errorf("pair %q: %w", entry, err)
		}
		pair := model.AssetPair{AmountAsset: amountAsset, PriceAsset: priceAsset}
		if err := pair.Validate(); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func parseAsset(s string) (model.Asset, error) {
	if s == "" || s == "native" {
		return model.NativeAsset, nil
	}
	id, err := crypto.DigestFromBase58(s)
	if err != nil {
		return model.Asset{}, err
	}
	return model.IssuedAsset(id), nil
}

func envUint(key string, fallback uint64) uint64 {
	v, err := strconv.ParseUint(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

// eventPublisher maps engine events onto websocket messages for one pair's
// topic.
func eventPublisher(hub *websocket.Hub, pair model.AssetPair) orderusecase.EventHandler {
	topic := pair.String()
	return func(ev engine.Event) {
		switch e := ev.(type) {
		case engine.OrderExecuted:
			hub.PublishTrade(websocket.TradeMsg{
				Pair:    topic,
				Price:   model.Uint64Flex(e.Price),
				Amount:  model.Uint64Flex(e.Executed),
				BuySide: e.IsBuySubmitted(),
				Ts:      e.Ts,
			})
		case engine.OrderCanceled:
			hub.PublishCancel(websocket.CancelMsg{
				Pair:   topic,
				Order:  e.Order.ID(),
				System: e.System,
				Ts:     e.Ts,
			})
		}
	}
}
