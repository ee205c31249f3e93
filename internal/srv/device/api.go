package device

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jypelle/tabelo/apimodel"
	"github.com/jypelle/tabelo/internal/srv/config"
	"github.com/jypelle/tabelo/internal/srv/event"
	"github.com/jypelle/tabelo/internal/tool"
	"github.com/sirupsen/logrus"
)

// eventTimeout bounds the wait for the display pump, which only reads
// events between two steps of its loop.
const eventTimeout = 5 * time.Second

type StatusProvider interface {
	Status() apimodel.Status
}

type FrameProvider interface {
	LastImage() image.Image
}

type Api struct {
	eventChannel chan event.ApiEvent

	router    *mux.Router
	apiRouter *mux.Router
	server    *http.Server

	config *config.ServerConfig
	status StatusProvider
	frames FrameProvider
}

func NewApi(config *config.ServerConfig, status StatusProvider, frames FrameProvider) *Api {
	api := Api{
		config:       config,
		status:       status,
		frames:       frames,
		eventChannel: make(chan event.ApiEvent),
	}

	api.router = mux.NewRouter().StrictSlash(false)

	api.apiRouter = api.router.PathPrefix("/api").Subrouter()
	api.apiRouter.NotFoundHandler = http.HandlerFunc(ErrorNotFoundAction)
	api.apiRouter.MethodNotAllowedHandler = http.HandlerFunc(ErrorMethodNotAllowedAction)

	// Auth middleware
	api.apiRouter.Use(
		func(handler http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer func() {
					if rec := recover(); rec != nil {
						logrus.Warningf("recovered from panic : [%v] - stack trace : \n [%s]", rec, debug.Stack())
						ErrorMessageAction(w, fmt.Sprintf("%v", rec), http.StatusInternalServerError)
					}
				}()

				// Check API Key
				apiKey := r.Header.Get("x-api-key")
				if apiKey != config.ApiParam.ApiKey {
					ErrorStatusAction(w, r, http.StatusForbidden)
					return
				}

				logrus.Debugf("PATH: %s %s", r.Host, r.URL.Path)

				handler.ServeHTTP(w, r)
			})
		})

	api.apiRouter.HandleFunc("/is_alive",
		func(w http.ResponseWriter, r *http.Request) {
			ErrorStatusAction(w, r, http.StatusOK)
		}).Methods("GET")
	api.apiRouter.HandleFunc("/status",
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(api.status.Status()); err != nil {
				logrus.Warnf("Unable to encode status: %v", err)
			}
		}).Methods("GET")
	api.apiRouter.HandleFunc("/frame.png",
		func(w http.ResponseWriter, r *http.Request) {
			lastImg := api.frames.LastImage()
			if lastImg == nil {
				ErrorMessageAction(w, "Nothing displayed yet", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Cache-Control", "no-store")
			if err := png.Encode(w, lastImg); err != nil {
				logrus.Warnf("Unable to encode frame: %v", err)
			}
		}).Methods("GET")
	api.apiRouter.HandleFunc("/queue/rebuild",
		func(w http.ResponseWriter, r *http.Request) {
			api.sendEvent(w, r, event.ApiEventRebuildQueueData{})
		}).Methods("POST")
	api.apiRouter.HandleFunc("/screen/next",
		func(w http.ResponseWriter, r *http.Request) {
			api.sendEvent(w, r, event.ApiEventNextScreenData{})
		}).Methods("POST")

	// Tell the browser that it's OK for JS to communicate with the server
	headersOk := handlers.AllowedHeaders([]string{"Authorization", "x-api-key"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})

	api.server = &http.Server{
		Addr:         ":" + strconv.FormatInt(config.ApiParam.SslPort, 10),
		Handler:      handlers.CompressHandler(handlers.CORS(originsOk, headersOk, methodsOk)(api.router)),
		ReadTimeout:  time.Second * 30,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 240,
	}

	return &api
}

// sendEvent hands an event to the display pump and reports its answer.
func (d *Api) sendEvent(w http.ResponseWriter, r *http.Request, data interface{}) {
	timeout := time.NewTimer(eventTimeout)
	defer timeout.Stop()

	result := make(chan error, 1)
	select {
	case d.eventChannel <- event.ApiEvent{Result: result, Data: data}:
	case <-timeout.C:
		ErrorStatusAction(w, r, http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}

	select {
	case err := <-result:
		if err != nil {
			ErrorMessageAction(w, err.Error(), http.StatusConflict)
			return
		}
		ErrorStatusAction(w, r, http.StatusAccepted)
	case <-timeout.C:
		ErrorStatusAction(w, r, http.StatusServiceUnavailable)
	}
}

func (d *Api) Start() {
	logrus.Infof("Start api device")

	if d.config.ApiParam.ApiKey == "" {
		logrus.Warnf("The api has no api key, every client is accepted")
	}

	existServerCert, err := tool.IsFileExists(d.config.GetCompleteCertFilename())
	if err != nil {
		logrus.Fatalf("Unable to access %s: %v\n", d.config.GetCompleteCertFilename(), err)
	}

	existServerKey, err := tool.IsFileExists(d.config.GetCompleteKeyFilename())
	if err != nil {
		logrus.Fatalf("Unable to access %s: %v\n", d.config.GetCompleteKeyFilename(), err)
	}

	if !existServerCert || !existServerKey {
		logrus.Info("Missing cert and key files, trying to generate them...")
		err = tool.GenerateTlsCertificate(
			tool.Certificate{Organization: "tabelo", CommonName: "Tabelo Server"},
			d.config.GetCompleteKeyFilename(),
			d.config.GetCompleteCertFilename())
		if err != nil {
			logrus.Fatalf("Unable to generate cert and key files : %v\n", err)
		}
		logrus.Info("Self-signed cert and key files generated")
	}

	// Launch https server
	go func() {
		err := d.server.ListenAndServeTLS(d.config.GetCompleteCertFilename(), d.config.GetCompleteKeyFilename())
		if err != nil && err != http.ErrServerClosed {
			logrus.Error(err)
		}
	}()
}

func (d *Api) StopSendingEvent() {
	logrus.Infof("Stop api device")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		logrus.Warnf("Unable to stop api server: %v", err)
	}
}

func (d *Api) EventChannel() <-chan event.ApiEvent {
	return d.eventChannel
}

func ErrorNotFoundAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusNotFound)
}

func ErrorMethodNotAllowedAction(w http.ResponseWriter, r *http.Request) {
	ErrorStatusAction(w, r, http.StatusMethodNotAllowed)
}

func ErrorStatusAction(w http.ResponseWriter, r *http.Request, status int) {
	ErrorMessageAction(w, "", status)
}

func ErrorMessageAction(w http.ResponseWriter, message string, status int) {
	apimodel.NewErrorMessage(status, message).SendError(w)
}
