// This file implements decoding and checking of request bodies and path
// parameters.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"finance/internal/core"
)

const maxBodyBytes = 1 << 20

// ErrInvalidRequest marks every body or path decoding failure.
var ErrInvalidRequest = errors.New("invalid request")

// createRequest uses pointers so a missing field can be told apart from a
// zero value.
type createRequest struct {
	Type     *core.TransactionType `json:"type"`
	Category *string               `json:"category"`
	Amount   *amountValue          `json:"amount"`
	Date     *core.Date            `json:"date"`
}

// amountValue accepts a JSON number or a numeric string. Inf and NaN are
// rejected.
type amountValue float64

func (a *amountValue) UnmarshalJSON(b []byte) error {
	var f float64
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("%w: amount must be a number, got %q", core.ErrInvalidAmount, s)
		}
		f = parsed
	} else if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("%w: amount must be a number", core.ErrInvalidAmount)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: amount must be finite", core.ErrInvalidAmount)
	}
	*a = amountValue(f)
	return nil
}

// DecodeTransactionCreate reads a creation payload. Unknown fields are
// ignored; every known field is required.
func DecodeTransactionCreate(w http.ResponseWriter, r *http.Request) (core.TransactionCreate, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	var req createRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return core.TransactionCreate{}, fmt.Errorf("%w: body is empty", ErrInvalidRequest)
		}
		return core.TransactionCreate{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if dec.More() {
		return core.TransactionCreate{}, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidRequest)
	}

	var missing []string
	if req.Type == nil {
		missing = append(missing, "type")
	}
	if req.Category == nil {
		missing = append(missing, "category")
	}
	if req.Amount == nil {
		missing = append(missing, "amount")
	}
	if req.Date == nil {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return core.TransactionCreate{}, fmt.Errorf("%w: missing field(s): %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	return core.TransactionCreate{
		Type:     *req.Type,
		Category: *req.Category,
		Amount:   float64(*req.Amount),
		Date:     *req.Date,
	}, nil
}

// ParseID reads the {id} path value as an integer.
func ParseID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id must be an integer, got %q", ErrInvalidRequest, raw)
	}
	return id, nil
}
