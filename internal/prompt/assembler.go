// Package prompt builds the ordered list of role-tagged turns sent to
// the completion model: persona instructions, enriched context
// (recent-question recap plus retrieved passages), bounded turn
// history, and the current message.
package prompt

import (
	"fmt"
	"strings"

	"github.com/AxelGiff/medicial/internal/models"
)

const persona = `Tu es un chatbot spécialisé dans la santé mentale, et plus particulièrement la schizophrénie. ` +
	`Tu réponds de façon fiable, claire et empathique, en t'appuyant uniquement sur des sources médicales et en français. ` +
	`IMPORTANT: Fais particulièrement attention aux questions de suivi. Si l'utilisateur pose une question qui ne précise ` +
	`pas clairement le sujet mais qui fait suite à votre échange précédent, comprends que cette question fait référence ` +
	`au contexte de la conversation précédente. Par exemple, si l'utilisateur demande 'Comment les traite-t-on?' après ` +
	`avoir parlé des symptômes positifs de la schizophrénie, ta réponse doit porter spécifiquement sur le traitement ` +
	`des symptômes positifs, et non sur la schizophrénie en général. IMPORTANT: Rédige tes réponses en Markdown.`

const enrichedInstructions = `Utilise ces informations pour répondre de manière plus précise et contextuelle. ` +
	`Ne pas inventer d'informations. Si tu ne sais pas, redirige vers un professionnel de santé. ` +
	`Tu dois donner une réponse complète, bien structurée et ne jamais couper ta réponse brutalement. ` +
	`Si tu n'as pas assez de place pour finir, indique-le clairement à l'utilisateur.`

const strictInstructions = `Tu dois répondre uniquement à partir de connaissances médicales factuelles. ` +
	`Si tu ne sais pas répondre, indique-le clairement et suggère de consulter un professionnel de santé. ` +
	`Tu dois donner une réponse complète et bien structurée.`

const (
	// recentQuestionLimit bounds the recent-question recap in the
	// enriched context block.
	recentQuestionLimit = 5
	// historyWindow bounds how many transcript entries feed the
	// alternating turn history.
	historyWindow = 20
)

// MetaFilter re-applies meta detection so meta questions never appear
// in the recent-question recap.
type MetaFilter interface {
	IsMeta(text string) bool
}

// Assembler builds completion prompts.
type Assembler struct {
	meta MetaFilter
}

func NewAssembler(meta MetaFilter) *Assembler {
	return &Assembler{meta: meta}
}

// Assemble produces the full turn list for one completion call.
// Transcript is the conversation's cache snapshot, context the
// retrieved passages (possibly empty), and userText the current
// message, which becomes the final user turn.
func (a *Assembler) Assemble(transcript []models.TranscriptEntry, context []string, userText string) []models.ChatMessage {
	system := persona

	enriched := a.enrichedContext(transcript, context, userText)
	if enriched != "" {
		system += "\n\n" + enriched + "\n\n" + enrichedInstructions
	} else {
		system += " " + strictInstructions
	}

	msgs := []models.ChatMessage{{Role: models.RoleSystem, Content: system}}
	msgs = append(msgs, a.turnHistory(transcript)...)
	msgs = append(msgs, models.ChatMessage{Role: models.RoleUser, Content: userText})
	return msgs
}

// SingleTurnPrompt builds the instruction-format prompt used for the
// non-streaming fallback model.
func SingleTurnPrompt(userText string) string {
	return fmt.Sprintf("<s>[INST] %s %s\n\nQuestion: %s [/INST]", persona, strictInstructions, userText)
}

// enrichedContext builds the recap + passages block. Empty when there
// is neither history nor retrieved context, which makes the system
// prompt fall back to the strict variant.
func (a *Assembler) enrichedContext(transcript []models.TranscriptEntry, context []string, userText string) string {
	var b strings.Builder

	var real []string
	for _, e := range transcript {
		if e.Kind != models.EntryQuestion {
			continue
		}
		if a.meta.IsMeta(e.Text) || e.Text == userText {
			continue
		}
		real = append(real, e.Text)
	}
	if len(real) > recentQuestionLimit {
		real = real[len(real)-recentQuestionLimit:]
	}

	if len(real) > 0 {
		b.WriteString("Historique récent des questions:\n")
		// Newest last, each labeled with its recency rank (1 = most
		// recent).
		for i, q := range real {
			fmt.Fprintf(&b, "- Question précédente %d: %s\n", len(real)-i, q)
		}
		b.WriteString("\n")
	}

	if len(context) > 0 {
		b.WriteString("Contexte médical pertinent:\n")
		b.WriteString(strings.Join(context, "\n\n"))
		b.WriteString("\n\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// turnHistory reconstructs alternating user/assistant turns from the
// typed transcript, bounded to the most recent historyWindow entries.
// A Question not followed by an Answer is dropped rather than paired
// by position.
func (a *Assembler) turnHistory(transcript []models.TranscriptEntry) []models.ChatMessage {
	entries := transcript
	if len(entries) > historyWindow {
		entries = entries[len(entries)-historyWindow:]
	}

	var msgs []models.ChatMessage
	for i := 0; i < len(entries); i++ {
		if entries[i].Kind != models.EntryQuestion {
			continue
		}
		// Find the answer for this question; context entries may sit
		// between them.
		for j := i + 1; j < len(entries); j++ {
			if entries[j].Kind == models.EntryQuestion {
				break // unanswered question, drop it
			}
			if entries[j].Kind == models.EntryAnswer {
				msgs = append(msgs,
					models.ChatMessage{Role: models.RoleUser, Content: entries[i].Text},
					models.ChatMessage{Role: models.RoleAssistant, Content: entries[j].Text},
				)
				i = j
				break
			}
		}
	}
	return msgs
}
