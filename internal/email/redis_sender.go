package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"invitedoffer/offerroom/internal/config"
)

// RedisSender implements the Sender interface by storing emails in Redis.
// It backs the integration test harness: tests poll the Service API, which
// reads the keys written here.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// kindFromSubject maps a subject line back to its email kind for key
// differentiation. Subjects are fixed per kind, so prefix matching is enough.
func kindFromSubject(subject string) Kind {
	switch {
	case strings.Contains(subject, "is ready"):
		return KindRoomReady
	case strings.HasPrefix(subject, "New bid on"):
		return KindNewBid
	case strings.HasPrefix(subject, "Bid confirmed"):
		return KindBidConfirmation
	case strings.HasPrefix(subject, "Auction closed"):
		return KindAuctionClosedSeller
	case strings.HasPrefix(subject, "You won the auction"):
		return KindAuctionClosedWinner
	}
	return Kind("unknown")
}

// Send stores a representation of the email in Redis instead of sending it.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	kind := kindFromSubject(subject)

	// One primary recipient per notification; use the first address for the key.
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		"kind":    string(kind),
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := fmt.Sprintf("mockemail:%s:%s", primaryTo, kind)
	ttl := 5 * time.Minute

	if err := s.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, ttl, strings.Join(to, ", "), subject)
	return nil
}
