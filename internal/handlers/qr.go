package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/danlang422/here-app/internal/db"
	"github.com/danlang422/here-app/internal/models"
)

// GET /qr/{code}.png — QR for a section; scanning opens the student agenda
// with that section highlighted.
func SectionQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.NotFound(w, r)
		return
	}
	var sec models.Section
	if err := db.Conn().Where("public_id = ?", code).First(&sec).Error; err != nil {
		http.NotFound(w, r)
		return
	}

	png, err := qrcode.Encode(agendaLink(r, sec.PublicID), qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "failed to generate qr", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// agendaLink builds the absolute student-agenda URL a section QR encodes. The
// scheme follows the request: direct TLS or a terminating proxy's
// X-Forwarded-Proto keeps the encoded link on https.
func agendaLink(r *http.Request, publicID string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/student/agenda?section=" + publicID
}
