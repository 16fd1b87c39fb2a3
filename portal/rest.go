package portal

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/monitor"
)

const timeout = 15

// Handler returns the RESTful API router.
func (p *Portal) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", p.homeHandler)
	r.HandleFunc("/network", p.networkHandler).Methods("GET")               // donation network description
	r.HandleFunc("/connect", p.connectHandler).Methods("POST")              // connect the wallet
	r.HandleFunc("/campaigns", p.campaignsHandler).Methods("GET")           // presented campaign list
	r.HandleFunc("/campaigns", p.createHandler).Methods("POST")             // create a campaign
	r.HandleFunc("/campaigns/{id}", p.campaignHandler).Methods("GET")       // one campaign
	r.HandleFunc("/campaigns/{id}/donate", p.donateHandler).Methods("POST") // donate to a campaign
	r.HandleFunc("/total", p.totalHandler).Methods("GET")                   // contract total
	r.HandleFunc("/feed", p.feedHandler).Methods("GET")                     // websocket campaign feed
	r.Use(monitor.Middleware)

	return r
}

// Init sets up and starts the http/https server to service the RESTful API. If sslPort, sslCert and sslKey are
// informed, it will start an https (TLS) server on the specified endpoint. It returns once Stop was called.
func (p *Portal) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	h := p.Handler()

	if port != "" {
		p.s = &http.Server{
			Handler:      h,
			Addr:         endpoint + ":" + port,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			if e := p.s.ListenAndServe(); !errors.Is(e, http.ErrServerClosed) {
				err = e
			}
		}()

		logger.Info("listening to API http requests", zap.String("addr", p.s.Addr))
	}

	if sslPort != "" && sslCert != "" && sslKey != "" {
		p.ss = &http.Server{
			Handler:      h,
			Addr:         endpoint + ":" + sslPort,
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			if e := p.ss.ListenAndServeTLS(sslCert, sslKey); !errors.Is(e, http.ErrServerClosed) {
				errTLS = e
			}
		}()

		logger.Info("listening to API https requests", zap.String("addr", p.ss.Addr))
	}

	<-p.sc

	return fmt.Sprintf("shutdown http server: %v, https server: %v", err, errTLS)
}
