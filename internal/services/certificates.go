package services

import (
	"fmt"
	"log"
	"time"

	"github.com/foodbridge/backend/internal/models"
	"github.com/google/uuid"
)

// Mailer is the outbound mail dispatch port. The production transport is an
// external collaborator; LogMailer stands in when none is configured.
type Mailer interface {
	SendDocument(to, subject string, document []byte) error
}

// LogMailer logs outbound documents instead of sending them.
type LogMailer struct{}

// SendDocument logs the dispatch and discards the document
func (LogMailer) SendDocument(to, subject string, document []byte) error {
	log.Printf("mail dispatch (no transport configured): to=%s subject=%q size=%d bytes", to, subject, len(document))
	return nil
}

// CertificateService issues donor appreciation certificates after a
// delivery completes and hands them to the mail port. Failures are logged
// and swallowed; a certificate never blocks or reverts a delivery.
type CertificateService struct {
	mailer Mailer
}

// NewCertificateService creates a new CertificateService
func NewCertificateService(mailer Mailer) *CertificateService {
	return &CertificateService{mailer: mailer}
}

// IssueAndEmail renders a certificate for the donor and emails it asynchronously.
func (s *CertificateService) IssueAndEmail(donor *models.User, donation *models.Donation) {
	go func() {
		document := renderCertificate(donor, donation)
		subject := "Thank you for your donation"
		if err := s.mailer.SendDocument(donor.Email, subject, document); err != nil {
			log.Printf("failed to email certificate to %s: %v", donor.Email, err)
		}
	}()
}

func renderCertificate(donor *models.User, donation *models.Donation) []byte {
	serial := uuid.NewString()
	body := fmt.Sprintf(
		"CERTIFICATE OF APPRECIATION\n\nSerial: %s\n\nThis certifies that %s donated %d servings of %s,\ndelivered on %s.\n\nThank you for fighting food waste.\n",
		serial, donor.Name, donation.Quantity, donation.FoodType,
		time.Now().Format("January 2, 2006"),
	)
	return []byte(body)
}
