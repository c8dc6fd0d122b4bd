package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptomonkeys/go-monkeychain/ledger"
	"github.com/cryptomonkeys/go-monkeychain/market"
	"github.com/cryptomonkeys/go-monkeychain/node"
)

func serve(args []string) error {
	cfg, err := loadConfig(args, "serve")
	if err != nil {
		return err
	}
	log := cfg.logger()

	store, err := cfg.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	metrics := node.NewMetrics(reg)

	// Resume from the journal so restarts pick up where they left off.
	n, err := node.Replay(context.Background(), cfg.nodeConfig(store, metrics))
	if err != nil {
		return err
	}
	n.Start()
	defer n.Stop()

	mux := http.NewServeMux()
	api := &apiServer{node: n}
	api.routes(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("listen", cfg.Listen).Str("journal", cfg.Journal).Msg("monkeyd serving")

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case sig := <-sigc:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

type apiServer struct {
	node *node.Node
}

func (s *apiServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/mint", s.handleMint)
	mux.HandleFunc("POST /v1/breed", s.handleBreed)
	mux.HandleFunc("POST /v1/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/operator", s.handleOperator)
	mux.HandleFunc("POST /v1/deposit", s.handleDeposit)
	mux.HandleFunc("POST /v1/offers", s.handleSetOffer)
	mux.HandleFunc("DELETE /v1/offers/{id}", s.handleRemoveOffer)
	mux.HandleFunc("POST /v1/buy", s.handleBuy)

	mux.HandleFunc("GET /v1/monkeys/{id}", s.handleMonkey)
	mux.HandleFunc("GET /v1/owners/{who}", s.handleOwned)
	mux.HandleFunc("GET /v1/offers", s.handleOffers)
	mux.HandleFunc("GET /v1/balances/{who}", s.handleBalance)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeErr maps ledger and market errors onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrAssetNotFound), errors.Is(err, market.ErrNoActiveOffer):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, ledger.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrGen0LimitReached),
		errors.Is(err, market.ErrIncorrectPayment),
		errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrSelfBreed),
		errors.Is(err, ledger.ErrSentinelAsset),
		errors.Is(err, ledger.ErrZeroIdentity):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func parseAmount(w http.ResponseWriter, s string) (*uint256.Int, bool) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return nil, false
	}
	return v, true
}

func (s *apiServer) handleMint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Genes  uint64 `json:"genes"`
		Caller string `json:"caller"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := s.node.MintFounder(r.Context(), req.Genes, ledger.Identity(req.Caller))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"tokenId": id})
}

func (s *apiServer) handleBreed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParentA uint64 `json:"parentA"`
		ParentB uint64 `json:"parentB"`
		Caller  string `json:"caller"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := s.node.Breed(r.Context(), req.ParentA, req.ParentB, ledger.Identity(req.Caller))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"tokenId": id})
}

func (s *apiServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenID uint64 `json:"tokenId"`
		From    string `json:"from"`
		To      string `json:"to"`
		Caller  string `json:"caller"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.node.Transfer(r.Context(), ledger.Identity(req.From), ledger.Identity(req.To), req.TokenID, ledger.Identity(req.Caller))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *apiServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenID uint64 `json:"tokenId"`
		Spender string `json:"spender"`
		Caller  string `json:"caller"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.node.Approve(r.Context(), req.TokenID, ledger.Identity(req.Spender), ledger.Identity(req.Caller)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *apiServer) handleOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner    string `json:"owner"`
		Operator string `json:"operator"`
		Enabled  bool   `json:"enabled"`
		Caller   string `json:"caller"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.node.SetOperator(r.Context(), ledger.Identity(req.Owner), ledger.Identity(req.Operator), req.Enabled, ledger.Identity(req.Caller))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *apiServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Who    string `json:"who"`
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	if err := s.node.Deposit(r.Context(), ledger.Identity(req.Who), amount); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *apiServer) handleSetOffer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenID uint64 `json:"tokenId"`
		Price   string `json:"price"`
		Seller  string `json:"seller"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	price, ok := parseAmount(w, req.Price)
	if !ok {
		return
	}
	if err := s.node.SetOffer(r.Context(), price, req.TokenID, ledger.Identity(req.Seller)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *apiServer) handleRemoveOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller := ledger.Identity(r.URL.Query().Get("caller"))
	if err := s.node.RemoveOffer(r.Context(), id, caller); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *apiServer) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenID uint64 `json:"tokenId"`
		Payment string `json:"payment"`
		Buyer   string `json:"buyer"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	payment, ok := parseAmount(w, req.Payment)
	if !ok {
		return
	}
	if err := s.node.Buy(r.Context(), req.TokenID, payment, ledger.Identity(req.Buyer)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *apiServer) handleMonkey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	asset, err := s.node.DetailsOf(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := map[string]any{
		"tokenId":    asset.ID,
		"genes":      asset.Genes,
		"generation": asset.Generation,
		"owner":      asset.Owner,
		"parents":    asset.Parents,
	}
	if offer, ok := s.node.OfferFor(id); ok {
		resp["offer"] = map[string]any{"seller": offer.Seller, "price": offer.Price.Dec()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleOwned(w http.ResponseWriter, r *http.Request) {
	who := ledger.Identity(r.PathValue("who"))
	ids := s.node.IDsOwnedBy(who)
	writeJSON(w, http.StatusOK, map[string]any{"owner": who, "tokenIds": ids})
}

func (s *apiServer) handleOffers(w http.ResponseWriter, r *http.Request) {
	ids := s.node.ActiveOffers()
	offers := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if offer, ok := s.node.OfferFor(id); ok {
			offers = append(offers, map[string]any{
				"tokenId": id, "seller": offer.Seller, "price": offer.Price.Dec(),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (s *apiServer) handleBalance(w http.ResponseWriter, r *http.Request) {
	who := ledger.Identity(r.PathValue("who"))
	writeJSON(w, http.StatusOK, map[string]any{
		"who": who, "balance": s.node.VaultBalanceOf(who).Dec(),
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	root := s.node.StateRoot()
	writeJSON(w, http.StatusOK, map[string]any{
		"totalSupply":    s.node.TotalSupply(),
		"gen0Minted":     s.node.Gen0Minted(),
		"journalVersion": s.node.JournalVersion(),
		"stateRoot":      hexRoot(root),
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func hexRoot(root [32]byte) string {
	return "0x" + hex.EncodeToString(root[:])
}
