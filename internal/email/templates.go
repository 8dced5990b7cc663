package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
)

// Kind identifies one of the fixed notification emails.
type Kind string

const (
	KindRoomReady           Kind = "room_ready"
	KindNewBid              Kind = "new_bid"
	KindBidConfirmation     Kind = "bid_confirmation"
	KindAuctionClosedSeller Kind = "auction_closed_seller"
	KindAuctionClosedWinner Kind = "auction_closed_winner"
)

// TemplateData carries the fields referenced by the notification templates.
// Not every template uses every field.
type TemplateData struct {
	RoomTitle   string
	Amount      int64
	OwnerLink   string
	RoomLink    string
	WinnerEmail string
	SellerEmail string
}

const (
	roomReadyTmpl = `
    <h1>Your OfferRoom is ready!</h1>
    <p>Your bidding room for <strong>{{.RoomTitle}}</strong> is now live.</p>
    <p>You can manage your room and view bids here:</p>
    <a href="{{.OwnerLink}}" style="display:inline-block;padding:12px 24px;background-color:#000;color:#fff;text-decoration:none;border-radius:6px;font-weight:bold;">View Admin Panel</a>
    <p>Keep this link private. It is your only way to manage the room.</p>
  `
	newBidTmpl = `
    <h1>New Bid Received!</h1>
    <p>A new bid of <strong>${{.Amount | money}}</strong> has been placed on <strong>{{.RoomTitle}}</strong>.</p>
    <p>Check all bids and manage your room here:</p>
    <a href="{{.OwnerLink}}" style="display:inline-block;padding:12px 24px;background-color:#000;color:#fff;text-decoration:none;border-radius:6px;font-weight:bold;">View Admin Panel</a>
  `
	bidConfirmationTmpl = `
    <h1>Bid Confirmed</h1>
    <p>Your bid of <strong>${{.Amount | money}}</strong> for <strong>{{.RoomTitle}}</strong> has been successfully placed.</p>
    <p>You can track the auction status here:</p>
    <a href="{{.RoomLink}}" style="display:inline-block;padding:12px 24px;background-color:#000;color:#fff;text-decoration:none;border-radius:6px;font-weight:bold;">View Bidding Room</a>
  `
	auctionClosedSellerTmpl = `
    <h1>Congratulations! Your auction has closed.</h1>
    <p>You have accepted an offer of <strong>${{.Amount | money}}</strong> for <strong>{{.RoomTitle}}</strong>.</p>
    <p>The winning bidder's contact information:</p>
    <p style="font-size:18px;font-weight:bold;background:#f5f5f5;padding:12px;border-radius:6px;">{{.WinnerEmail}}</p>
    <p>Please reach out to coordinate payment and delivery of your asset.</p>
  `
	auctionClosedWinnerTmpl = `
    <h1>Congratulations! You won the auction!</h1>
    <p>Your bid of <strong>${{.Amount | money}}</strong> for <strong>{{.RoomTitle}}</strong> has been accepted by the seller.</p>
    <p>The seller's contact information:</p>
    <p style="font-size:18px;font-weight:bold;background:#f5f5f5;padding:12px;border-radius:6px;">{{.SellerEmail}}</p>
    <p>Please expect to be contacted soon to arrange payment and delivery.</p>
  `
)

// money groups digits with commas, matching the storefront display format.
func money(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

var templates = func() map[Kind]*template.Template {
	funcs := template.FuncMap{"money": money}
	m := map[Kind]*template.Template{}
	for kind, body := range map[Kind]string{
		KindRoomReady:           roomReadyTmpl,
		KindNewBid:              newBidTmpl,
		KindBidConfirmation:     bidConfirmationTmpl,
		KindAuctionClosedSeller: auctionClosedSellerTmpl,
		KindAuctionClosedWinner: auctionClosedWinnerTmpl,
	} {
		m[kind] = template.Must(template.New(string(kind)).Funcs(funcs).Parse(body))
	}
	return m
}()

// Subject returns the subject line for the given email kind.
func Subject(kind Kind, data TemplateData) string {
	switch kind {
	case KindRoomReady:
		return fmt.Sprintf("Your OfferRoom for %s is ready!", data.RoomTitle)
	case KindNewBid:
		return fmt.Sprintf("New bid on %s: $%s", data.RoomTitle, money(data.Amount))
	case KindBidConfirmation:
		return fmt.Sprintf("Bid confirmed: %s", data.RoomTitle)
	case KindAuctionClosedSeller:
		return fmt.Sprintf("Auction closed: %s", data.RoomTitle)
	case KindAuctionClosedWinner:
		return fmt.Sprintf("You won the auction: %s", data.RoomTitle)
	}
	return string(kind)
}

// Render produces the HTML body for the given email kind.
func Render(kind Kind, data TemplateData) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("unknown email kind: %s", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email %s: %w", kind, err)
	}
	return buf.String(), nil
}
