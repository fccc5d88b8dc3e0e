package httpapi

import (
	"net/http"

	"parcelbridge/config"
	"parcelbridge/database"
	"parcelbridge/service"
)

type App struct {
	Config       config.Config
	Orchestrator *service.Orchestrator
	Store        *database.Store
}

func NewApp(cfg config.Config, orchestrator *service.Orchestrator, store *database.Store) *App {
	return &App{
		Config:       cfg,
		Orchestrator: orchestrator,
		Store:        store,
	}
}

func (a *App) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", a.home)
	mux.HandleFunc("/rates", a.ratesHandler)
	mux.HandleFunc("/labels", a.createLabelHandler)
	mux.HandleFunc("/labels/", a.labelRecordHandler)
	mux.HandleFunc("/track/", a.trackHandler)
	mux.HandleFunc("/cancel", a.cancelHandler)
	mux.HandleFunc("/addresses/validate", a.validateAddressHandler)
	mux.Handle(
		"/files/postage_label/",
		http.StripPrefix(
			"/files/postage_label/",
			http.FileServer(http.Dir("files/postage_label")),
		),
	)
}
