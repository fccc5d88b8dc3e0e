package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"parcelbridge/config"
	"parcelbridge/database"
	httpapi "parcelbridge/protocol/http"
	"parcelbridge/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, using system environment variables")
	}

	cfg := config.LoadConfig()

	var store *database.Store
	if cfg.DBHost != "" {
		var err error
		store, err = database.NewStore(cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
	} else {
		log.Println("⚠️ No database configured, label records disabled")
	}

	snapshots := service.NewRateSnapshotStore(cfg.Redis)
	if snapshots == nil {
		log.Println("⚠️ No redis configured, rate snapshots disabled")
	} else {
		defer snapshots.Close()
	}

	providers := service.NewProviders(cfg)
	if len(providers) == 0 {
		log.Fatal("no shipping providers configured; set at least one provider credential")
	}

	var recorder service.LabelRecorder
	if store != nil {
		recorder = store
	}
	orchestrator := service.NewOrchestrator(providers, snapshots, recorder)

	app := httpapi.NewApp(cfg, orchestrator, store)
	mux := http.NewServeMux()
	app.RegisterRoutes(mux)

	log.Printf("🚀 Server running on :%s\n", cfg.Port)
	log.Fatal(http.ListenAndServe("0.0.0.0:"+cfg.Port, mux))
}
