package server

import (
	"fmt"
	"net/http"
	"time"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// parseDay reads an optional YYYY-MM-DD query parameter.
func parseDay(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return &t, nil
}

func writeXLSX(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GET /api/export/transactions.xlsx?owner=&from=&to=
func (a *api) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	from, err := parseDay(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDay(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := a.Export.ExportTransactionsXLSX(r.Context(), r.URL.Query().Get("owner"), from, to)
	if err != nil {
		a.log.Error("http.export.transactions_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeXLSX(w, "transactions.xlsx", data)
}

// GET /api/export/contacts.xlsx?owner=
func (a *api) handleExportContacts(w http.ResponseWriter, r *http.Request) {
	data, err := a.Export.ExportContactsXLSX(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		a.log.Error("http.export.contacts_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeXLSX(w, "contacts.xlsx", data)
}
