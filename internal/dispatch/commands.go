package dispatch

import (
	"context"

	"infobroker/internal/catalog"
	"infobroker/internal/session"
)

// Button labels for the reply keyboards. The transport renders these; the
// dispatcher matches on them like commands.
const (
	ButtonPhone   = "📱 Phone"
	ButtonAadhaar = "🆔 Aadhaar"
	ButtonVehicle = "🚗 Vehicle"
	ButtonIFSC    = "🏦 IFSC"
	ButtonIP      = "🌐 IP Lookup"
	ButtonPincode = "📮 Pincode"
	ButtonCredits = "💎 My Credits"
	ButtonBuy     = "🛒 Buy Credits"
	ButtonHelp    = "ℹ️ Help"

	ButtonAdminPanel     = "👑 Admin Panel"
	ButtonUserStats      = "📊 User Statistics"
	ButtonAllUsers       = "👥 All Users"
	ButtonAddCredits     = "➕ Add Credits"
	ButtonRemoveCredits  = "➖ Remove Credits"
	ButtonUltimate       = "⚡ Ultimate Credits"
	ButtonSearchStats    = "📈 Search Stats"
	ButtonBanUser        = "🔨 Ban User"
	ButtonUnbanUser      = "🔓 Unban User"
	ButtonProtectValue   = "🛡️ Protect Number"
	ButtonProtectedList  = "🛡️ Protected Numbers"
	ButtonBannedList     = "🚫 Banned Users"
	ButtonMainMenu       = "🏠 Main Menu"
	ButtonCancel         = "❌ Cancel"
)

// buildCommandTable resolves every slash command and button label to its
// handler once at startup. The table is closed: unknown input never reaches a
// handler by name.
func (d *Dispatcher) buildCommandTable() map[string]handler {
	table := map[string]handler{
		"/start":       d.handleStart,
		"/help":        d.handleHelp,
		"/credits":     d.handleCredits,
		ButtonCredits:  d.handleCredits,
		ButtonBuy:      d.handleBuy,
		ButtonHelp:     d.handleHelp,
		ButtonMainMenu: d.handleStart,

		ButtonAdminPanel:    d.adminOnly(d.handleAdminPanel),
		ButtonUserStats:     d.adminOnly(d.handleAdminUserStats),
		ButtonAllUsers:      d.adminOnly(d.handleAdminAllUsers),
		ButtonSearchStats:   d.adminOnly(d.handleAdminSearchStats),
		ButtonProtectedList: d.adminOnly(d.handleAdminProtectedList),
		ButtonBannedList:    d.adminOnly(d.handleAdminBannedList),

		ButtonAddCredits:    d.adminPrompt(session.AdminActionAddCredits, adminAddCreditsPrompt),
		ButtonRemoveCredits: d.adminPrompt(session.AdminActionRemoveCredits, adminRemoveCreditsPrompt),
		ButtonUltimate:      d.adminPrompt(session.AdminActionUnlimited, adminUnlimitedPrompt),
		ButtonBanUser:       d.adminPrompt(session.AdminActionBan, adminBanPrompt),
		ButtonUnbanUser:     d.adminPrompt(session.AdminActionUnban, adminUnbanPrompt),
		ButtonProtectValue:  d.adminPrompt(session.AdminActionProtect, adminProtectPrompt),
	}

	buttons := map[string]string{
		ButtonPhone:   catalog.KeyPhone,
		ButtonAadhaar: catalog.KeyNationalID,
		ButtonVehicle: catalog.KeyVehicle,
		ButtonIFSC:    catalog.KeyBankCode,
		ButtonIP:      catalog.KeyIP,
		ButtonPincode: catalog.KeyPincode,
	}
	for label, key := range buttons {
		table[label] = d.lookupPrompt(key)
	}
	for _, svc := range d.catalog.Services() {
		if svc.Command != "" {
			table["/"+svc.Command] = d.lookupPrompt(svc.Key)
		}
	}
	return table
}

// lookupPrompt enters the awaiting-input state for one service. Entry
// requires not-banned and a balance covering the cost.
func (d *Dispatcher) lookupPrompt(serviceKey string) handler {
	return func(ctx context.Context, msg Message) error {
		svc, err := d.catalog.Lookup(serviceKey)
		if err != nil {
			return err
		}

		banned, err := d.users.IsBanned(ctx, msg.UserID)
		if err != nil {
			return err
		}
		if banned {
			return d.send(ctx, msg.UserID, Reply{Text: bannedShortText})
		}

		balance, err := d.ledger.Balance(ctx, msg.UserID)
		if err != nil {
			return err
		}
		if balance < svc.Cost {
			return d.send(ctx, msg.UserID, Reply{Text: renderInsufficientCredits(balance, svc.Cost), Keyboard: d.mainKeyboard(msg.UserID)})
		}

		if err := d.sessions.Put(ctx, msg.UserID, session.State{Pending: session.PendingServiceInput, ServiceKey: svc.Key}); err != nil {
			return err
		}
		return d.send(ctx, msg.UserID, Reply{Text: renderLookupPrompt(svc, balance), Keyboard: KeyboardCancel})
	}
}

// adminOnly silently drops the message for anyone but the admin.
func (d *Dispatcher) adminOnly(h handler) handler {
	return func(ctx context.Context, msg Message) error {
		if msg.UserID != d.adminID {
			return nil
		}
		return h(ctx, msg)
	}
}

// adminPrompt enters the awaiting-admin-input state for one action.
func (d *Dispatcher) adminPrompt(action session.AdminAction, prompt string) handler {
	return d.adminOnly(func(ctx context.Context, msg Message) error {
		if err := d.sessions.Put(ctx, msg.UserID, session.State{Pending: session.PendingAdminInput, AdminAction: action}); err != nil {
			return err
		}
		return d.send(ctx, msg.UserID, Reply{Text: prompt, Keyboard: KeyboardCancel})
	})
}

func (d *Dispatcher) handleStart(ctx context.Context, msg Message) error {
	u, err := d.users.Get(ctx, msg.UserID)
	if err != nil {
		return err
	}
	if u.Banned {
		return d.send(ctx, msg.UserID, Reply{Text: renderBanNotice(u)})
	}
	return d.send(ctx, msg.UserID, Reply{Text: renderWelcome(u, d.catalog), Keyboard: d.mainKeyboard(msg.UserID)})
}

func (d *Dispatcher) handleHelp(ctx context.Context, msg Message) error {
	banned, err := d.users.IsBanned(ctx, msg.UserID)
	if err != nil || banned {
		return err
	}
	return d.send(ctx, msg.UserID, Reply{Text: renderHelp(d.catalog), Keyboard: d.mainKeyboard(msg.UserID)})
}

func (d *Dispatcher) handleCredits(ctx context.Context, msg Message) error {
	banned, err := d.users.IsBanned(ctx, msg.UserID)
	if err != nil || banned {
		return err
	}
	u, err := d.users.Get(ctx, msg.UserID)
	if err != nil {
		return err
	}
	return d.send(ctx, msg.UserID, Reply{Text: renderCredits(u, d.catalog), Keyboard: d.mainKeyboard(msg.UserID)})
}

func (d *Dispatcher) handleBuy(ctx context.Context, msg Message) error {
	banned, err := d.users.IsBanned(ctx, msg.UserID)
	if err != nil || banned {
		return err
	}
	return d.send(ctx, msg.UserID, Reply{Text: buyCreditsText, Keyboard: d.mainKeyboard(msg.UserID)})
}

// runLookup executes the pipeline and renders the outcome. serviceKey is the
// pending-state hint; empty means classifier routing.
func (d *Dispatcher) runLookup(ctx context.Context, userID int64, serviceKey, text string) error {
	outcome, err := d.pipeline.Execute(ctx, userID, serviceKey, text)
	if err != nil {
		d.logger.ErrorContext(ctx, "pipeline execution", "user_id", userID, "error", err)
		return d.send(ctx, userID, Reply{Text: internalErrorText, Keyboard: d.mainKeyboard(userID)})
	}
	return d.renderOutcome(ctx, userID, outcome)
}
