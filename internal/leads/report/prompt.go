package report

import (
	"fmt"
	"strings"

	"thor_backend/platform/config"
)

const (
	openAISystemInstruction = "Eres un experto en análisis de negocios. Responde SOLO con JSON válido, sin markdown, " +
		"sin explicaciones adicionales. El JSON debe seguir el esquema exacto solicitado."
	perplexitySystemInstruction = "Eres un experto en análisis de negocios con acceso a búsqueda web en tiempo real. " +
		"Realiza búsquedas activas en internet para investigar empresas y personas. " +
		"Responde SOLO con JSON válido, sin markdown, sin explicaciones adicionales."
)

const notAvailable = "No disponible"

// SystemInstruction returns the fixed system message for provider.
func SystemInstruction(provider string) string {
	if provider == config.ProviderPerplexity {
		return perplexitySystemInstruction
	}
	return openAISystemInstruction
}

// BuildPrompt renders the investigation instructions for one lead. The website
// is the main subject and must be cited back in "fuentes".
func BuildPrompt(req Request) string {
	website := orDefault(req.Website, notAvailable)
	target := orDefault(req.Website, "proporcionada")

	var sb strings.Builder
	sb.WriteString("IMPORTANTE: responde SOLO con un objeto JSON válido, sin markdown ni texto adicional, ")
	sb.WriteString("siguiendo exactamente el esquema del final.\n\n")
	sb.WriteString("Eres un analista de negocio especializado en automatización con inteligencia artificial. ")
	sb.WriteString("Investiga la página web del negocio y detecta procesos que puedan automatizarse con IA.\n\n")

	sb.WriteString("**DATOS DEL LEAD:**\n")
	fmt.Fprintf(&sb, "- Nombre: %s\n", orDefault(req.Name, notAvailable))
	fmt.Fprintf(&sb, "- Website: %s (foco principal del análisis)\n", website)
	if len(req.Emails) > 0 {
		fmt.Fprintf(&sb, "- Emails: %s\n", strings.Join(req.Emails, ", "))
	} else {
		sb.WriteString("- Emails: No disponibles\n")
	}
	if links := socialLines(req.Socials); len(links) > 0 {
		sb.WriteString("- Redes Sociales:\n")
		for _, l := range links {
			fmt.Fprintf(&sb, "  - %s\n", l)
		}
	} else {
		sb.WriteString("- Redes Sociales: No disponibles\n")
	}

	sb.WriteString("\n**QUÉ ANALIZAR:**\n")
	fmt.Fprintf(&sb, "1. Visita %s y sus páginas principales (inicio, servicios, quiénes somos, contacto, blog).\n", website)
	sb.WriteString("2. Identifica cómo contactan los clientes, cómo se gestionan citas y consultas, y qué seguimiento reciben.\n")
	sb.WriteString("3. Señala carencias automatizables: atención fuera de horario, WhatsApp sin automatizar, ")
	sb.WriteString("cualificación manual de leads, ausencia de notificaciones o de chatbot.\n")
	sb.WriteString("4. Complementa con información del sector si hace falta. No inventes problemas.\n\n")

	sb.WriteString("**REGLAS DEL INFORME:**\n")
	sb.WriteString("- \"resumen\": resumen ejecutivo del negocio basado en su web.\n")
	sb.WriteString("- \"problemas_automatizables\": problemas concretos observados en la web.\n")
	sb.WriteString("- \"propuesta_valor\": propuesta específica que resuelva esos problemas con IA.\n")
	sb.WriteString("- \"fuentes\": URLs completas consultadas. DEBES incluir el website analizado.\n\n")

	sb.WriteString("**FORMATO DE SALIDA (JSON):**\n")
	sb.WriteString(outputSchema)
	fmt.Fprintf(&sb, "\nAnaliza ahora la página web %s y genera el informe completo:", target)
	return sb.String()
}

const outputSchema = `{
  "resumen": "string",
  "servicios": ["string"],
  "presencia_online": {
    "website_titulo": "string",
    "seguidores_aprox": {
      "instagram": number | null,
      "facebook": number | null,
      "linkedin": number | null,
      "twitter": number | null
    }
  },
  "logros_y_prensa": ["string"],
  "puntos_dolor": ["string"],
  "problemas_automatizables": ["string"],
  "propuesta_valor": "string",
  "fuentes": ["string"]
}
`

func socialLines(s Socials) []string {
	var out []string
	add := func(label, value string) {
		if value != "" {
			out = append(out, label+": "+value)
		}
	}
	add("LinkedIn", s.LinkedIn)
	add("Facebook", s.Facebook)
	add("Instagram", s.Instagram)
	add("Twitter", s.Twitter)
	return out
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
