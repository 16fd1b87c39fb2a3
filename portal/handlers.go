package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tarancss/relief/ledger"
	"github.com/tarancss/relief/lib/block"
	"github.com/tarancss/relief/lib/block/types"
	"github.com/tarancss/relief/lib/logger"
	mtypes "github.com/tarancss/relief/lib/msg/types"
	"github.com/tarancss/relief/lib/store"
	"github.com/tarancss/relief/lib/wallet"
)

// DonateReq is the body of a donation request. Account is the number of the portal account donating and Amount the
// native currency amount, ie "0.1".
type DonateReq struct {
	Account uint32 `json:"account"`
	Amount  string `json:"amount"`
}

// ConnectRes is the reply to a wallet connection.
type ConnectRes struct {
	Account  string   `json:"account"`
	Short    string   `json:"short"`
	ChainID  string   `json:"chainId"`
	Accounts []string `json:"accounts"`
}

// TotalRes is the reply to a contract total request. Total is zero when the network could not be read.
type TotalRes struct {
	Net    string `json:"net"`
	Total  string `json:"total"`
	Symbol string `json:"symbol"`
}

// Errors returned to client requests.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNotRecorded      = errors.New("donation sent but it could not be recorded, keep the transaction hash")
)

// Response defines the data structure returned to the client making the http request. Body holds the JSON encoded
// reply.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// reply writes res with status and logs the request.
func reply(rw http.ResponseWriter, r *http.Request, status int, res Response, err error) {
	if err != nil {
		res.Error = err.Error()
	}

	logger.Info("httpreq", zap.String("from", r.RemoteAddr), zap.String("uri", r.RequestURI),
		zap.Int("status", status), zap.Error(err))

	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(&res)
}

func body(v interface{}) string {
	tmp, _ := json.Marshal(v)

	return string(tmp)
}

// homeHandler just replies a welcome message to the client.
func (p *Portal) homeHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, r, http.StatusOK, Response{Body: "Hello, this is the disaster relief donation portal!"}, nil)
}

// networkHandler replies the description of the donation network wallets are connected to.
func (p *Portal) networkHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, r, http.StatusOK, Response{Body: body(p.wallet.AddChainParams())}, nil)
}

// connectHandler connects the wallet and replies the account to donate from.
func (p *Portal) connectHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res ConnectRes

	status := http.StatusOK

	defer func() {
		if err != nil {
			reply(rw, r, status, Response{}, err)

			return
		}

		reply(rw, r, status, Response{Body: body(res)}, nil)
	}()

	if res.Account, err = p.wallet.Connect(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		if errors.Is(err, wallet.ErrNoAccounts) {
			status = http.StatusUnauthorized
		}

		return
	}

	res.Short = wallet.ShortenAddress(res.Account)
	res.ChainID = p.wallet.ChainID()

	if res.Accounts, err = p.keys.Accounts(); err != nil {
		status = http.StatusInternalServerError
	}
}

// campaignsHandler replies the presented campaign list.
func (p *Portal) campaignsHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, r, http.StatusOK, Response{Body: body(p.Campaigns())}, nil)
}

// campaignHandler replies the campaign with the id in the uri, read from the store so campaigns hidden from the list
// as duplicates can still be looked up and donated to.
func (p *Portal) campaignHandler(rw http.ResponseWriter, r *http.Request) {
	c, err := p.l.Campaign(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, store.ErrCampaignNotFound) {
			status, err = http.StatusNotFound, ErrCampaignNotFound
		}

		reply(rw, r, status, Response{}, err)

		return
	}

	reply(rw, r, http.StatusOK, Response{Body: body(c)}, nil)
}

// createHandler creates the campaign in the request body and replies its id.
func (p *Portal) createHandler(rw http.ResponseWriter, r *http.Request) {
	var in ledger.CreateInput

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		reply(rw, r, http.StatusBadRequest, Response{}, fmt.Errorf("%w: %w", ErrBadRequest, err))

		return
	}

	id, err := p.l.Create(r.Context(), in)

	switch {
	case errors.Is(err, ledger.ErrValidation):
		reply(rw, r, http.StatusBadRequest, Response{}, err)
	case err != nil:
		reply(rw, r, http.StatusBadGateway, Response{}, err)
	default:
		reply(rw, r, http.StatusCreated, Response{Body: id}, nil)
	}
}

// donateHandler submits the donation in the request body to the network and credits it to the campaign once the
// network accepted it. It does not wait for the transaction to be mined.
func (p *Portal) donateHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var req DonateReq

	var h types.TxHandle

	status := http.StatusOK

	defer func() {
		switch {
		case err == nil:
			reply(rw, r, status, Response{Body: body(h)}, nil)
		case h.Hash != "":
			reply(rw, r, status, Response{Body: h.Hash}, err)
		default:
			reply(rw, r, status, Response{}, err)
		}
	}()

	id := mux.Vars(r)["id"]

	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		status, err = http.StatusBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err)

		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		status, err = http.StatusBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, types.ErrBadAmount)

		return
	}

	if _, err = p.l.Campaign(r.Context(), id); err != nil {
		status = http.StatusBadGateway
		if errors.Is(err, store.ErrCampaignNotFound) {
			status, err = http.StatusNotFound, ErrCampaignNotFound
		}

		return
	}

	signer, err := p.keys.Signer(req.Account)
	if err != nil {
		status = http.StatusBadRequest

		return
	}

	if h, err = p.bc.SubmitDonation(r.Context(), signer, amount); err != nil {
		status = http.StatusBadGateway
		if errors.Is(err, types.ErrTransactionRejected) || errors.Is(err, types.ErrBadAmount) {
			status = http.StatusBadRequest
		}

		return
	}

	err = p.l.RecordTransfer(r.Context(), ledger.Transfer{
		CampaignID: id,
		Amount:     amount,
		TxHash:     h.Hash,
		Net:        h.Net,
		Donor:      h.From,
	})
	if err != nil {
		status, err = http.StatusBadGateway, fmt.Errorf("%w: %w", ErrNotRecorded, err)

		return
	}

	if errS := p.mb.SendDonation(h.Net, mtypes.Donation{
		Net:        h.Net,
		TxHash:     h.Hash,
		CampaignID: id,
		From:       h.From,
		Amount:     h.Value,
		Status:     mtypes.Submitted,
	}); errS != nil {
		logger.Warn("cannot publish submitted donation", logger.Net(h.Net), zap.String("tx", h.Hash),
			zap.Error(errS))
	}
}

// totalHandler replies the total held by the donation contract.
func (p *Portal) totalHandler(rw http.ResponseWriter, r *http.Request) {
	res := TotalRes{
		Net:    p.bc.Name(),
		Total:  block.TotalRaised(r.Context(), p.bc).String(),
		Symbol: p.wallet.AddChainParams().NativeCurrency.Symbol,
	}

	reply(rw, r, http.StatusOK, Response{Body: body(res)}, nil)
}
