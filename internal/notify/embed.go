package notify

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/roach88/sheetwatch/internal/normalize"
)

const (
	colorBlue   = 0x2196F3
	colorGreen  = 0x4CAF50
	colorOrange = 0xFF9800
	colorRed    = 0xF44336
	colorPurple = 0x9C27B0
	colorPink   = 0xE91E63
	colorYellow = 0xFFC107
	colorGrey   = 0x607D8B
)

var statusColors = map[string]int{
	normalize.StatusInactive:   colorOrange,
	normalize.StatusWrittenOff: colorRed,
	normalize.StatusReturned:   colorPurple,
	normalize.StatusSuspended:  colorPink,
}

var regimeColors = map[string]int{
	"SN":     colorGreen,
	"LP":     colorBlue,
	"IGREJA": colorPurple,
	"MEI":    colorOrange,
	"ISENTO": colorYellow,
}

// timeLayout is how timestamps are shown to readers.
const timeLayout = "02/01/2006 15:04:05"

// buildMessage renders n as a Discord message. Alerts and regime changes
// mention @everyone.
func buildMessage(n Notification, footer string) *discordgo.MessageSend {
	e := &discordgo.MessageEmbed{
		Description: fmt.Sprintf("**%s** - %s", n.EntityID, n.Name),
		Color:       colorBlue,
	}
	if !n.At.IsZero() {
		e.Timestamp = n.At.UTC().Format(time.RFC3339)
	}
	when := &discordgo.MessageEmbedField{Name: "Data/Hora", Value: n.At.Format(timeLayout)}
	mention := false

	switch n.Kind {
	case KindAlert:
		e.Title = "⚠️ Alteração de Status - Empresa"
		e.Color = colorOr(statusColors, n.Current, colorBlue)
		e.Fields = []*discordgo.MessageEmbedField{
			{Name: "Status Anterior", Value: n.Previous, Inline: true},
			{Name: "Novo Status", Value: bold(n.Current), Inline: true},
			when,
		}
		mention = true
	case KindResolution:
		e.Title = "✅ Status Regularizado"
		e.Color = colorGreen
		e.Fields = []*discordgo.MessageEmbedField{
			{Name: "Status Anterior", Value: n.Previous, Inline: true},
			{Name: "Novo Status", Value: bold(n.Current), Inline: true},
			when,
		}
	case KindRegimeChanged, KindRegimeDefined:
		e.Title = "📋 Alteração de Regime Tributário"
		if n.Kind == KindRegimeDefined {
			e.Title = "📋 Regime Tributário Definido"
		}
		e.Color = colorOr(regimeColors, n.Current, colorBlue)
		e.Fields = []*discordgo.MessageEmbedField{
			{Name: "Regime Anterior", Value: regimeValue(n.Previous), Inline: true},
			{Name: "Novo Regime", Value: regimeValue(n.Current), Inline: true},
			when,
			{Name: "⚠️ Ação Necessária", Value: "Revisar documentação e conformidade legal."},
		}
		mention = n.Kind == KindRegimeChanged
	case KindNewEntity:
		e.Title = "✨ Nova Empresa Cadastrada"
		e.Color = colorGreen
		e.Fields = []*discordgo.MessageEmbedField{
			{Name: "Status Inicial", Value: bold(n.Current), Inline: true},
			{Name: "Regime Tributário", Value: bold(normalize.RegimeLabel(n.Regime)), Inline: true},
			when,
		}
	case KindReport:
		e.Title = n.Title
		e.Description = "```\n" + n.Body + "\n```"
		e.Color = colorGrey
	default:
		e.Title = string(n.Kind)
	}

	if footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	}
	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{e}}
	if mention {
		msg.Content = "@everyone"
		msg.AllowedMentions = &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeEveryone},
		}
	}
	return msg
}

func colorOr(colors map[string]int, key string, fallback int) int {
	if c, ok := colors[key]; ok {
		return c
	}
	return fallback
}

func bold(s string) string {
	if s == "" {
		return "—"
	}
	return "**" + s + "**"
}

func regimeValue(token string) string {
	if token == "" {
		return "—"
	}
	return fmt.Sprintf("**%s** (%s)", normalize.RegimeLabel(token), token)
}
