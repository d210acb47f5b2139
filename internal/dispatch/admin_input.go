package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"infobroker/internal/catalog"
	"infobroker/internal/moderation"
	"infobroker/internal/session"
	"infobroker/pkg/sentinel"
)

const (
	invalidPairFormat  = "❌ **Invalid Format**\n\nUse: `user_id amount`\nExample: `123456789 10`"
	invalidIDFormat    = "❌ **Invalid Format**\n\nUse: `user_id`\nExample: `123456789`"
	invalidBanFormat   = "❌ **Invalid Format**\n\nUse: `user_id reason`\nExample: `123456789 Spamming`"
	invalidPhoneFormat = "❌ **Invalid Phone Number**\n\nPlease enter a valid 10-digit phone number starting with 6-9."
)

// handleAdminInput consumes one admin reply captured by a pending admin
// action. Ill-formed input reports the expected format; the pending state is
// already cleared, so the admin re-enters via the panel button.
func (d *Dispatcher) handleAdminInput(ctx context.Context, msg Message, action session.AdminAction, text string) error {
	switch action {
	case session.AdminActionAddCredits:
		return d.adminCreditChange(ctx, msg, text, true)
	case session.AdminActionRemoveCredits:
		return d.adminCreditChange(ctx, msg, text, false)
	case session.AdminActionUnlimited:
		return d.adminUnlimited(ctx, msg, text)
	case session.AdminActionBan:
		return d.adminBan(ctx, msg, text)
	case session.AdminActionUnban:
		return d.adminUnban(ctx, msg, text)
	case session.AdminActionProtect:
		return d.adminProtect(ctx, msg, text)
	}
	d.logger.WarnContext(ctx, "unknown admin action", "action", action)
	return d.send(ctx, msg.UserID, Reply{Text: internalErrorText, Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) adminCreditChange(ctx context.Context, msg Message, text string, add bool) error {
	userID, amount, ok := parseIDAmount(text)
	if !ok {
		return d.send(ctx, msg.UserID, Reply{Text: invalidPairFormat, Keyboard: KeyboardAdmin})
	}

	var balance int64
	var err error
	if add {
		balance, err = d.controller.GrantCredits(ctx, msg.UserID, userID, amount)
	} else {
		balance, err = d.controller.DeductCredits(ctx, msg.UserID, userID, amount)
	}
	if err != nil {
		return d.adminOpError(ctx, msg.UserID, userID, err)
	}

	verb := "Added"
	if !add {
		verb = "Removed"
	}
	text = fmt.Sprintf("✅ **Credits %s**\n\nUser: `%d`\nAmount: `%d` credits\nNew balance: `%d`", verb, userID, amount, balance)
	return d.send(ctx, msg.UserID, Reply{Text: text, Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) adminUnlimited(ctx context.Context, msg Message, text string) error {
	userID, ok := parseID(text)
	if !ok {
		return d.send(ctx, msg.UserID, Reply{Text: invalidIDFormat, Keyboard: KeyboardAdmin})
	}

	balance, err := d.controller.GrantUnlimited(ctx, msg.UserID, userID)
	if err != nil {
		return d.adminOpError(ctx, msg.UserID, userID, err)
	}
	reply := fmt.Sprintf("⚡ **Ultimate Credits Granted**\n\nUser: `%d`\nBalance: `%d` (Unlimited)", userID, balance)
	return d.send(ctx, msg.UserID, Reply{Text: reply, Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) adminBan(ctx context.Context, msg Message, text string) error {
	parts := strings.SplitN(text, " ", 2)
	userID, ok := parseID(parts[0])
	if !ok {
		return d.send(ctx, msg.UserID, Reply{Text: invalidBanFormat, Keyboard: KeyboardAdmin})
	}
	reason := ""
	if len(parts) > 1 {
		reason = strings.TrimSpace(parts[1])
	}

	if err := d.controller.Ban(ctx, msg.UserID, userID, reason); err != nil {
		return d.adminOpError(ctx, msg.UserID, userID, err)
	}
	if reason == "" {
		reason = "No reason provided"
	}
	reply := fmt.Sprintf("🔨 **User Banned**\n\nUser: `%d`\nReason: `%s`", userID, reason)
	return d.send(ctx, msg.UserID, Reply{Text: reply, Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) adminUnban(ctx context.Context, msg Message, text string) error {
	userID, ok := parseID(text)
	if !ok {
		return d.send(ctx, msg.UserID, Reply{Text: invalidIDFormat, Keyboard: KeyboardAdmin})
	}

	if err := d.controller.Unban(ctx, msg.UserID, userID); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			reply := fmt.Sprintf("❌ **User Not Banned**\n\nUser ID `%d` is not banned.", userID)
			return d.send(ctx, msg.UserID, Reply{Text: reply, Keyboard: KeyboardAdmin})
		}
		return d.adminOpError(ctx, msg.UserID, userID, err)
	}
	reply := fmt.Sprintf("🔓 **User Unbanned**\n\nUser: `%d`\nStatus: ✅ Active", userID)
	return d.send(ctx, msg.UserID, Reply{Text: reply, Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) adminProtect(ctx context.Context, msg Message, text string) error {
	value := strings.TrimSpace(text)
	phone, err := d.catalog.Lookup(catalog.KeyPhone)
	if err != nil || !phone.Valid(value) {
		return d.send(ctx, msg.UserID, Reply{Text: invalidPhoneFormat, Keyboard: KeyboardAdmin})
	}

	outcome, err := d.controller.Protect(ctx, msg.UserID, value, "")
	if err != nil {
		return d.adminOpError(ctx, msg.UserID, 0, err)
	}
	if outcome == moderation.ProtectAlreadyProtected {
		reply := fmt.Sprintf("ℹ️ **Already Protected**\n\nPhone: `%s`\nStatus: Already protected", value)
		return d.send(ctx, msg.UserID, Reply{Text: reply, Keyboard: KeyboardAdmin})
	}
	reply := fmt.Sprintf("🛡️ **Number Protected**\n\nPhone: `%s`\nStatus: 🔒 Protected from lookups", value)
	return d.send(ctx, msg.UserID, Reply{Text: reply, Keyboard: KeyboardAdmin})
}

// adminOpError renders controller failures for the chat surface. Unknown
// users are the common case; anything else is reported generically and logged.
func (d *Dispatcher) adminOpError(ctx context.Context, adminID, userID int64, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) && userID != 0 {
		reply := fmt.Sprintf("❌ **User Not Found**\n\nUser ID `%d` not found in database.", userID)
		return d.send(ctx, adminID, Reply{Text: reply, Keyboard: KeyboardAdmin})
	}
	if errors.Is(err, sentinel.ErrInsufficientFunds) {
		return d.send(ctx, adminID, Reply{Text: "❌ **Insufficient Balance**\n\nThe user does not have that many credits.", Keyboard: KeyboardAdmin})
	}
	d.logger.ErrorContext(ctx, "admin operation", "error", err)
	return d.send(ctx, adminID, Reply{Text: internalErrorText, Keyboard: KeyboardAdmin})
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseIDAmount(s string) (int64, int64, bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, false
	}
	id, ok := parseID(fields[0])
	if !ok {
		return 0, 0, false
	}
	amount, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || amount <= 0 {
		return 0, 0, false
	}
	return id, amount, true
}

func (d *Dispatcher) handleAdminPanel(ctx context.Context, msg Message) error {
	stats, err := d.controller.UsageStats(ctx, msg.UserID)
	if err != nil {
		return err
	}
	return d.send(ctx, msg.UserID, Reply{Text: renderAdminPanel(stats, d.catalog.Len()), Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) handleAdminUserStats(ctx context.Context, msg Message) error {
	stats, err := d.controller.UsageStats(ctx, msg.UserID)
	if err != nil {
		return err
	}
	return d.send(ctx, msg.UserID, Reply{Text: renderUserStats(stats, d.catalog), Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) handleAdminAllUsers(ctx context.Context, msg Message) error {
	users, err := d.controller.ListUsers(ctx, msg.UserID)
	if err != nil {
		return err
	}
	return d.send(ctx, msg.UserID, Reply{Text: renderUsers(users), Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) handleAdminSearchStats(ctx context.Context, msg Message) error {
	stats, err := d.controller.UsageStats(ctx, msg.UserID)
	if err != nil {
		return err
	}
	return d.send(ctx, msg.UserID, Reply{Text: renderSearchStats(stats.UsageByService, stats.TotalLookups, d.catalog), Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) handleAdminBannedList(ctx context.Context, msg Message) error {
	refs, err := d.controller.ListBanned(ctx, msg.UserID)
	if err != nil {
		return err
	}
	return d.send(ctx, msg.UserID, Reply{Text: renderBannedUsers(refs), Keyboard: KeyboardAdmin})
}

func (d *Dispatcher) handleAdminProtectedList(ctx context.Context, msg Message) error {
	records, err := d.controller.ListProtected(ctx, msg.UserID)
	if err != nil {
		return err
	}
	return d.send(ctx, msg.UserID, Reply{Text: renderProtectedRecords(records), Keyboard: KeyboardAdmin})
}
