package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/libp2p/go-libp2p-core/crypto"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/shopspring/decimal"
)

type meResponse struct {
	PeerID    string `json:"peerID"`
	PublicKey string `json:"publicKey"`
}

type issueWalletRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	LastMovement string          `json:"lastMovement"`
}

type updateWalletRequest struct {
	LinearID     uuid.UUID       `json:"linearID"`
	Delta        decimal.Decimal `json:"delta"`
	LastMovement string          `json:"lastMovement"`
}

type issueIOURequest struct {
	Value        decimal.Decimal `json:"value"`
	Counterparty string          `json:"counterparty"`
}

type settleIOURequest struct {
	IOULinearID    uuid.UUID `json:"iouLinearID"`
	WalletLinearID uuid.UUID `json:"walletLinearID"`
	Memo           string    `json:"memo"`
}

func (g *Gateway) handleGETMe(w http.ResponseWriter, r *http.Request) {
	id := g.node.Identity()
	pub, err := id.ExtractPublicKey()
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	pubBytes, err := crypto.MarshalPublicKey(pub)
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	sanitizedJSONResponse(w, meResponse{
		PeerID:    id.Pretty(),
		PublicKey: base64.StdEncoding.EncodeToString(pubBytes),
	})
}

func (g *Gateway) handleGETPeers(w http.ResponseWriter, r *http.Request) {
	sanitizedJSONResponse(w, peerStrings(g.node.Peers()))
}

func (g *Gateway) handleGETNotaries(w http.ResponseWriter, r *http.Request) {
	sanitizedJSONResponse(w, peerStrings(g.node.Notaries()))
}

func (g *Gateway) handleGETWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := g.node.GetMyWallets()
	if err != nil {
		http.Error(w, wrapError(err), httpStatus(err))
		return
	}
	sanitizedJSONResponse(w, wallets)
}

func (g *Gateway) handleGETWalletHistory(w http.ResponseWriter, r *http.Request) {
	history, err := g.node.GetWalletHistory()
	if err != nil {
		http.Error(w, wrapError(err), httpStatus(err))
		return
	}
	sanitizedJSONResponse(w, history)
}

func (g *Gateway) handleGETIOUs(w http.ResponseWriter, r *http.Request) {
	ious, err := g.node.GetIOUs()
	if err != nil {
		http.Error(w, wrapError(err), httpStatus(err))
		return
	}
	sanitizedJSONResponse(w, ious)
}

func (g *Gateway) handleGETMyIOUs(w http.ResponseWriter, r *http.Request) {
	ious, err := g.node.GetMyIOUs()
	if err != nil {
		http.Error(w, wrapError(err), httpStatus(err))
		return
	}
	sanitizedJSONResponse(w, ious)
}

func (g *Gateway) handleGETTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := g.node.GetTransaction(mux.Vars(r)["txID"])
	if err != nil {
		http.Error(w, wrapError(err), httpStatus(err))
		return
	}
	sanitizedJSONResponse(w, tx)
}

func (g *Gateway) handlePOSTWallet(w http.ResponseWriter, r *http.Request) {
	var req issueWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	wallet, err := g.node.IssueWallet(r.Context(), req.Amount, req.LastMovement)
	if err != nil {
		http.Error(w, wrapError(err), httpStatus(err))
		return
	}
	sanitizedJSONResponse(w, wallet)
}

func (g *Gateway) handlePUTWallet(w http.ResponseWriter, r *http.Request) {
	var req updateWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	wallet, err := g.node.UpdateWallet(r.Context(), req.LinearID, req.Delta, req.LastMovement)
	if err != nil {
		http.Error(w, wrapError(err), httpStatus(err))
		return
	}
	sanitizedJSONResponse(w, wallet)
}

func (g *Gateway) handlePOSTIOU(w http.ResponseWriter, r *http.Request) {
	var req issueIOURequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	counterparty, err := peer.Decode(req.Counterparty)
	if err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	iou, err := g.node.IssueIOU(r.Context(), req.Value, counterparty)
	if err != nil {
		http.Error(w, wrapError(err), httpStatus(err))
		return
	}
	sanitizedJSONResponse(w, iou)
}

func (g *Gateway) handlePOSTSettle(w http.ResponseWriter, r *http.Request) {
	var req settleIOURequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	wallet, err := g.node.SettleIOU(r.Context(), req.IOULinearID, req.WalletLinearID, req.Memo)
	if err != nil {
		http.Error(w, wrapError(err), httpStatus(err))
		return
	}
	sanitizedJSONResponse(w, wallet)
}

func peerStrings(peers []peer.ID) []string {
	ret := make([]string, 0, len(peers))
	for _, p := range peers {
		ret = append(ret, p.Pretty())
	}
	return ret
}
