package dispatch

import (
	"context"
	"fmt"
	"strings"

	"infobroker/internal/admin"
	"infobroker/internal/catalog"
	"infobroker/internal/history"
	"infobroker/internal/moderation"
	"infobroker/internal/pipeline"
	"infobroker/internal/user"
)

// maxChunkRunes is the longest single message the chat transport accepts.
const maxChunkRunes = 4000

// listPageSize caps admin list views; the remainder is summarized.
const listPageSize = 10

const (
	cancelledText = "❌ *Operation cancelled*\n\n🏠 *Returning to main menu...*"

	chooseOptionText = "Please choose an option from the menu below, or send a value to look up."

	bannedShortText = "🚫 Your account is banned from using this bot."

	internalErrorText = "⚠️ **Unexpected Error**\n\nSomething went wrong on our side. Please try again in a moment."

	buyCreditsText = `🛒 **Buy Credits**

💎 **Credit Packages Available:**

💰 **50 Credits** - ₹100
💰 **100 Credits** - ₹180
💰 **200 Credits** - ₹300
💰 **500 Credits** - ₹600

📲 **How to Buy:**
1. Contact the administrator
2. Choose your package
3. Make payment
4. Receive credits instantly!

⚡ **Instant Activation**
Credits added immediately after payment!`

	adminAddCreditsPrompt    = "➕ **Add Credits**\n\nSend user ID and amount in format:\n`user_id amount`\n\nExample: `123456789 10`"
	adminRemoveCreditsPrompt = "➖ **Remove Credits**\n\nSend user ID and amount in format:\n`user_id amount`\n\nExample: `123456789 5`"
	adminUnlimitedPrompt     = "⚡ **Ultimate Credits**\n\nSend user ID to give unlimited credits:\n`user_id`\n\nExample: `123456789`"
	adminBanPrompt           = "🔨 **Ban User**\n\nSend user ID and reason in format:\n`user_id reason`\n\nExample: `123456789 Spamming`"
	adminUnbanPrompt         = "🔓 **Unban User**\n\nSend user ID to unban:\n`user_id`\n\nExample: `123456789`"
	adminProtectPrompt       = "🛡️ **Protect Number**\n\nSend phone number to protect:\n`phone_number`\n\nExample: `9876543210`"
)

func renderWelcome(u *user.User, cat *catalog.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✨ **Welcome %s!** ✨\n\n", u.FirstName)
	b.WriteString("🤖 **Professional Multi-Info Bot**\n")
	b.WriteString("*Your all-in-one information lookup solution*\n\n")
	fmt.Fprintf(&b, "💎 **Available Credits:** `%d`\n", u.Credits)
	b.WriteString("*Each search costs 1 credit*\n\n")
	b.WriteString("🔍 **Available Lookups:**\n")
	for _, svc := range cat.Services() {
		fmt.Fprintf(&b, "• **%s** - e.g. `%s`\n", svc.Name, svc.Example)
	}
	b.WriteString("\n💡 **Quick Usage:**\nSimply send any number or use the buttons below!\n\n")
	b.WriteString("⚡ **Commands:**\n/credits - Check your credits\n/help - Detailed guide\n\n")
	b.WriteString("*Choose an option below to get started!*")
	return b.String()
}

func renderHelp(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("📚 **Professional Help Guide** 📚\n\n")
	b.WriteString("🔍 **Available Lookup Services:**\n\n")
	for _, svc := range cat.Services() {
		fmt.Fprintf(&b, "**%s** - %d credit\n", svc.Name, svc.Cost)
		fmt.Fprintf(&b, "• Example: `%s`\n\n", svc.Example)
	}
	b.WriteString("💎 **Credits System:**\n")
	b.WriteString("• Each search costs 1 credit\n")
	b.WriteString("• Check credits with /credits\n")
	b.WriteString("• Buy more credits with \"" + ButtonBuy + "\"\n\n")
	b.WriteString("⚡ **Quick Tips:**\n")
	b.WriteString("• Send numbers directly without commands\n")
	b.WriteString("• Use buttons for easy navigation\n")
	b.WriteString("• All data returned in JSON format\n")
	b.WriteString("• Cancel anytime with /cancel")
	return b.String()
}

func renderCredits(u *user.User, cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("💎 **Your Credits**\n\n")
	fmt.Fprintf(&b, "🆔 **User:** %s\n", u.DisplayName())
	fmt.Fprintf(&b, "💳 **Available Credits:** `%d`\n\n", u.Credits)
	b.WriteString("📊 **Cost per search:**\n")
	for _, svc := range cat.Services() {
		fmt.Fprintf(&b, "• %s: %d credit\n", svc.Name, svc.Cost)
	}
	b.WriteString("\n🛒 **Need more credits?**\nClick \"" + ButtonBuy + "\"")
	return b.String()
}

func renderBanNotice(u *user.User) string {
	reason := u.BanReason
	if reason == "" {
		reason = "No reason provided"
	}
	bannedOn := "Unknown"
	if u.BannedAt != nil {
		bannedOn = u.BannedAt.Format("2006-01-02")
	}
	var b strings.Builder
	b.WriteString("🚫 **ACCOUNT BANNED**\n\n")
	b.WriteString("❌ **Your account has been banned from using this bot.**\n\n")
	fmt.Fprintf(&b, "📋 **Reason:** %s\n", reason)
	fmt.Fprintf(&b, "📅 **Banned on:** %s\n\n", bannedOn)
	b.WriteString("🔍 **If you think this is a mistake, contact the administrator.**")
	return b.String()
}

func renderLookupPrompt(svc catalog.Service, balance int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **%s**\n\n", svc.Name)
	fmt.Fprintf(&b, "📝 *Please enter a value:*\n**Example:** `%s`\n\n", svc.Example)
	fmt.Fprintf(&b, "💎 **Credits required:** `%d`\n", svc.Cost)
	fmt.Fprintf(&b, "💳 **Your credits:** `%d`\n\n", balance)
	b.WriteString("⚡ *Just type the value or /cancel to stop*")
	return b.String()
}

func renderInsufficientCredits(balance, cost int64) string {
	return fmt.Sprintf("❌ **Insufficient Credits**\n\nYou have `%d` credits. You need `%d` credit for this search.\n\nClick '%s' for more credits.", balance, cost, ButtonBuy)
}

// renderOutcome turns a pipeline outcome into chat replies. Success sends a
// header message followed by the raw JSON payload, chunked when oversized.
func (d *Dispatcher) renderOutcome(ctx context.Context, userID int64, o pipeline.Outcome) error {
	main := d.mainKeyboard(userID)

	switch o.Status {
	case pipeline.StatusSuccess:
		header := fmt.Sprintf("✅ **%s Successful**\n\n📋 **Query:** `%s`\n💎 **Credits deducted:** `%d`\n💳 **Remaining credits:** `%d`\n📊 **Results Below:**",
			o.Service.Name, o.Query, o.Service.Cost, o.Balance)
		if err := d.send(ctx, userID, Reply{Text: header}); err != nil {
			return err
		}
		chunks := chunkRunes(string(o.Result), maxChunkRunes)
		for i, chunk := range chunks {
			reply := Reply{Text: "```json\n" + chunk + "\n```"}
			if i == len(chunks)-1 {
				reply.Keyboard = main
			}
			if err := d.send(ctx, userID, reply); err != nil {
				return err
			}
		}
		return nil

	case pipeline.StatusBanned:
		// The original surface stays silent toward banned users outside /start.
		return nil

	case pipeline.StatusNoMatch:
		return d.send(ctx, userID, Reply{Text: chooseOptionText, Keyboard: main})

	case pipeline.StatusProtected:
		text := fmt.Sprintf("🛡️ **Protected Number**\n\n❌ The value `%s` is protected and cannot be searched.\n\nIt has been secured by the administrator for privacy reasons.", o.Query)
		return d.send(ctx, userID, Reply{Text: text, Keyboard: main})

	case pipeline.StatusInsufficientCredits:
		return d.send(ctx, userID, Reply{Text: renderInsufficientCredits(o.Balance, o.Service.Cost), Keyboard: main})

	case pipeline.StatusInvalidFormat:
		text := fmt.Sprintf("❌ **Invalid Input**\n\nPlease enter a valid %s value:\n**Format:** `%s`\n\n💎 Your credit was refunded.", o.Service.Name, o.Service.Example)
		return d.send(ctx, userID, Reply{Text: text, Keyboard: main})

	case pipeline.StatusTimeout:
		text := fmt.Sprintf("⏰ **Request Timeout**\n\n🔍 **Lookup:** %s\n❌ **Error:** the service took too long to respond\n💎 Your credit was refunded. Try again in a moment.", o.Service.Name)
		return d.send(ctx, userID, Reply{Text: text, Keyboard: main})

	case pipeline.StatusServiceError:
		text := fmt.Sprintf("❌ **Service Error**\n\n🔍 **Lookup:** %s\n💎 Your credit was refunded. Try again later.", o.Service.Name)
		return d.send(ctx, userID, Reply{Text: text, Keyboard: main})
	}

	d.logger.WarnContext(ctx, "unhandled outcome status", "status", o.Status)
	return d.send(ctx, userID, Reply{Text: internalErrorText, Keyboard: main})
}

// chunkRunes splits s into rune-safe pieces of at most size runes.
func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	var out []string
	for len(runes) > 0 {
		n := size
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

func renderAdminPanel(stats admin.Stats, serviceCount int) string {
	var b strings.Builder
	b.WriteString("👑 **Admin Panel**\n\n")
	b.WriteString("📊 **Statistics:**\n")
	fmt.Fprintf(&b, "• Total Users: `%d`\n", stats.TotalUsers)
	fmt.Fprintf(&b, "• Banned Users: `%d`\n", stats.BannedUsers)
	fmt.Fprintf(&b, "• Protected Numbers: `%d`\n", stats.ProtectedValues)
	fmt.Fprintf(&b, "• Total Searches: `%d`\n", stats.TotalLookups)
	fmt.Fprintf(&b, "• Active Services: `%d`\n\n", serviceCount)
	b.WriteString("🛠 **Admin Tools:**\n")
	b.WriteString("• User Statistics & Management\n")
	b.WriteString("• Credit Management System\n")
	b.WriteString("• Ban/Unban System\n")
	b.WriteString("• Number Protection System\n")
	b.WriteString("• Search Analytics\n\n")
	b.WriteString("*Choose an option below:*")
	return b.String()
}

func renderUserStats(stats admin.Stats, cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("📊 **User Statistics**\n\n")
	fmt.Fprintf(&b, "👥 **Total Users:** `%d`\n", stats.TotalUsers)
	fmt.Fprintf(&b, "🚫 **Banned Users:** `%d`\n", stats.BannedUsers)
	fmt.Fprintf(&b, "✅ **Active Users:** `%d`\n", stats.TotalUsers-stats.BannedUsers)
	fmt.Fprintf(&b, "🛡️ **Protected Numbers:** `%d`\n", stats.ProtectedValues)
	fmt.Fprintf(&b, "🔍 **Total Searches:** `%d`\n", stats.TotalLookups)
	avg := 0.0
	if stats.TotalUsers > 0 {
		avg = float64(stats.TotalLookups) / float64(stats.TotalUsers)
	}
	fmt.Fprintf(&b, "📈 **Average per user:** `%.1f`\n\n", avg)
	b.WriteString("📋 **Search Distribution:**\n")
	for _, sc := range stats.UsageByService {
		fmt.Fprintf(&b, "• %s: `%d`\n", serviceName(cat, sc.ServiceKey), sc.Count)
	}
	return b.String()
}

func renderSearchStats(usage []history.ServiceCount, total int64, cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("📈 **Search Statistics**\n\n")
	for _, sc := range usage {
		pct := 0.0
		if total > 0 {
			pct = float64(sc.Count) / float64(total) * 100
		}
		fmt.Fprintf(&b, "• %s: `%d` (%.1f%%)\n", serviceName(cat, sc.ServiceKey), sc.Count, pct)
	}
	if len(usage) == 0 {
		b.WriteString("No searches recorded yet.")
	}
	return b.String()
}

func renderUsers(users []*user.User) string {
	if len(users) == 0 {
		return "No users found."
	}
	var b strings.Builder
	b.WriteString("👥 **All Users**\n\n")
	shown := users
	if len(shown) > listPageSize {
		shown = shown[:listPageSize]
	}
	for _, u := range shown {
		status := "✅ ACTIVE"
		if u.Banned {
			status = "🚫 BANNED"
		}
		fmt.Fprintf(&b, "🆔 **User:** %s (%s)\n", u.DisplayName(), status)
		fmt.Fprintf(&b, "📛 **ID:** `%d`\n", u.ID)
		fmt.Fprintf(&b, "💎 **Credits:** `%d`\n", u.Credits)
		fmt.Fprintf(&b, "🔍 **Searches:** `%d`\n", u.TotalLookups)
		fmt.Fprintf(&b, "📅 **Joined:** `%s`\n\n", u.JoinedAt.Format("2006-01-02"))
	}
	if len(users) > listPageSize {
		fmt.Fprintf(&b, "... and %d more users", len(users)-listPageSize)
	}
	return b.String()
}

func renderBannedUsers(refs []*moderation.UserRef) string {
	if len(refs) == 0 {
		return "No banned users found."
	}
	var b strings.Builder
	b.WriteString("🚫 **Banned Users**\n\n")
	shown := refs
	if len(shown) > listPageSize {
		shown = shown[:listPageSize]
	}
	for _, r := range shown {
		bannedOn := "Unknown"
		if r.BannedAt != nil {
			bannedOn = r.BannedAt.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "🆔 **User:** %s (`%d`)\n", r.Name, r.ID)
		fmt.Fprintf(&b, "📋 **Ban Reason:** %s\n", r.BanReason)
		fmt.Fprintf(&b, "📅 **Banned on:** %s\n", bannedOn)
		fmt.Fprintf(&b, "🔍 **Total Searches:** `%d`\n\n", r.Lookups)
	}
	if len(refs) > listPageSize {
		fmt.Fprintf(&b, "... and %d more banned users", len(refs)-listPageSize)
	}
	return b.String()
}

func renderProtectedRecords(records []moderation.ProtectedRecord) string {
	if len(records) == 0 {
		return "No protected numbers found."
	}
	var b strings.Builder
	b.WriteString("🛡️ **Protected Numbers**\n\n")
	shown := records
	if len(shown) > listPageSize {
		shown = shown[:listPageSize]
	}
	for _, rec := range shown {
		fmt.Fprintf(&b, "📱 **Number:** `%s`\n", rec.Value)
		fmt.Fprintf(&b, "📋 **Reason:** %s\n", rec.Reason)
		fmt.Fprintf(&b, "👤 **Protected by:** `%d`\n", rec.ProtectedBy)
		fmt.Fprintf(&b, "📅 **Protected on:** %s\n\n", rec.ProtectedAt.Format("2006-01-02"))
	}
	if len(records) > listPageSize {
		fmt.Fprintf(&b, "... and %d more protected numbers", len(records)-listPageSize)
	}
	return b.String()
}

func serviceName(cat *catalog.Catalog, key string) string {
	if svc, err := cat.Lookup(key); err == nil {
		return svc.Name
	}
	return key
}
