// Package presenter exposes the facilitator's stored state over a small
// read-only JSON API.
package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

type Presenter struct {
	logger logging.Logger
	repo   *repository.Repo
	root   chi.Router
}

func NewPresenter(logger logging.Logger, repo *repository.Repo) *Presenter {
	return &Presenter{
		logger: logger,
		repo:   repo,
		root:   chi.NewMux(),
	}
}

func (p *Presenter) Serve(addr string) error {
	p.logger.WithField("addr", addr).Info("Starting presenter service")
	p.root.Use(middleware.Throttle(5))
	p.root.Use(middleware.RequestID)
	p.root.Use(NewRequestLogger(p.logger))
	p.root.Get("/chain/{chainID:[0-9]+}", p.wrapJSONHandler(p.GetChain))
	p.root.Get("/gateway/{address:0x[0-9a-fA-F]{40}}/messages", p.wrapJSONHandler(p.GetGatewayMessages))
	p.root.Get("/requests/pending", p.wrapJSONHandler(p.GetPendingRequests))
	return http.ListenAndServe(addr, p.root)
}

func (p *Presenter) wrapJSONHandler(handler func(r *http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if errors.Is(err, db.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			p.logger.WithError(err).Error("Failed to handle request")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err = enc.Encode(res); err != nil {
			p.logger.WithError(err).Error("Failed to marshal JSON result")
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func (p *Presenter) GetChain(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	chainID := chi.URLParamFromCtx(ctx, "chainID")

	chain, err := p.repo.AuxiliaryChains.GetByChainID(ctx, chainID)
	if err != nil {
		return nil, err
	}
	res := &ChainInfo{
		ChainID:                  chain.ChainID,
		OriginChainName:          chain.OriginChainName,
		Gateway:                  chain.GatewayAddress,
		CoGateway:                chain.CoGatewayAddress,
		Anchor:                   chain.AnchorAddress,
		CoAnchor:                 chain.CoAnchorAddress,
		LastOriginBlockHeight:    chain.LastOriginBlockHeight,
		LastAuxiliaryBlockHeight: chain.LastAuxiliaryBlockHeight,
	}
	return res, nil
}

func (p *Presenter) GetGatewayMessages(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	address := common.HexToAddress(chi.URLParamFromCtx(ctx, "address"))

	messages, err := p.repo.Messages.FindByGateway(ctx, address)
	if err != nil {
		return nil, err
	}
	res := make([]*MessageInfo, len(messages))
	for i, message := range messages {
		res[i] = messageToMessageInfo(message)
	}
	return res, nil
}

func (p *Presenter) GetPendingRequests(r *http.Request) (interface{}, error) {
	ctx := r.Context()
	requestType := entity.RequestType(r.URL.Query().Get("type"))
	if requestType == "" {
		requestType = entity.RequestTypeStake
	}
	if requestType != entity.RequestTypeStake && requestType != entity.RequestTypeRedeem {
		return nil, errors.New("unknown request type")
	}

	requests, err := p.repo.MessageTransferRequests.GetWithNullMessageHash(ctx, requestType)
	if err != nil {
		return nil, err
	}
	res := make([]*RequestInfo, len(requests))
	for i, request := range requests {
		res[i] = requestToRequestInfo(request)
	}
	return res, nil
}

// NewRequestLogger logs each request with its id, path and status.
func NewRequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.WithField("request_id", middleware.GetReqID(r.Context())).
				WithField("path", r.URL.Path).
				WithField("status", ww.Status()).
				Info("Handled request")
		})
	}
}
