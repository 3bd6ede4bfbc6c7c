// Package mathsvc is the math tool service: it evaluates an arithmetic
// expression posted under the standard tool invocation contract.
package mathsvc

import (
	"encoding/json"
	"net/http"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolchat", "mathsvc")

type invokeRequest struct {
	Args struct {
		Expression string `json:"expression"`
	} `json:"args"`
}

// Result is the tool payload.
type Result struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// Handler serves POST {args:{expression}} -> {expression, result}.
// Failures are non-2xx with a text body, per the tool contract.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Args.Expression == "" {
		http.Error(w, "expression is required", http.StatusBadRequest)
		return
	}

	val, err := Eval(req.Args.Expression)
	if err != nil {
		logger.ContextKV(r.Context(), xlog.DEBUG,
			"status", "invalid_expression",
			"expression", req.Args.Expression,
			"err", err.Error(),
		)
		http.Error(w, "invalid expression: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Result{
		Expression: req.Args.Expression,
		Result:     val,
	})
}
