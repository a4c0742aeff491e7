// Package services – recommendation composer
//
// This file builds the prompt for questionnaire-based wellness
// recommendations and absorbs model failures behind fixed multi-paragraph
// fallback templates. The composer never returns an error: a broken or slow
// model degrades to a static, language-appropriate recommendation so the
// assessment flow always completes.
package services

import (
	"context"
	"strings"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/llm"
)

// Composer turns questionnaire answers (plus optional chat history) into a
// personalized recommendation text.
type Composer struct {
	LLM llm.Completer

	// Temperature used for the recommendation call.
	Temperature float64
}

// NewComposer constructs a Composer with the standard sampling temperature.
func NewComposer(c llm.Completer) *Composer {
	return &Composer{LLM: c, Temperature: 0.7}
}

// Compose generates a markdown recommendation from the answers. history, when
// non-empty, is folded into the prompt as additional context (at most the ten
// most recent messages; callers enforce the cap). Compose never fails.
func (c *Composer) Compose(ctx context.Context, answers domain.AssessmentAnswers, history []llm.Message) string {
	lang := NormalizeLanguage(answers.Language)

	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: buildRecommendationPrompt(answers, history, lang)},
		{Role: llm.RoleUser, Content: "Based on my assessment, what personalized mental wellness recommendations would you suggest?"},
	}

	out, err := c.LLM.CompleteWithTemperature(ctx, msgs, c.Temperature)
	if err != nil {
		return fallbackRecommendation(lang)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return fallbackRecommendation(lang)
	}
	return out
}

// buildRecommendationPrompt assembles the system prompt: screening answers,
// optional conversation excerpts, task framing, and the reply-language pin.
func buildRecommendationPrompt(a domain.AssessmentAnswers, history []llm.Message, lang string) string {
	var b strings.Builder

	b.WriteString("You are Animoa, a compassionate mental health companion designed to provide personalized, evidence-based guidance.\n\n")
	b.WriteString("## USER ASSESSMENT DATA\n")
	b.WriteString("A user has completed a validated mental health screening with these responses:\n\n")
	b.WriteString("- PHQ-2 Depression Screening:\n")
	b.WriteString("  * Feeling down or depressed: " + a.Mood + "\n")
	b.WriteString("  * Little interest or pleasure: " + a.Interest + "\n\n")
	b.WriteString("- GAD-2 Anxiety Screening:\n")
	b.WriteString("  * Feeling anxious: " + a.Anxiety + "\n")
	b.WriteString("  * Uncontrollable worry: " + a.Worry + "\n\n")
	b.WriteString("- Additional Wellbeing Factors:\n")
	b.WriteString("  * Sleep quality: " + a.Sleep + "\n")
	b.WriteString("  * Social support: " + a.Support + "\n")
	b.WriteString("  * Current coping strategies: \"" + a.Coping + "\"\n")

	if len(history) > 0 {
		b.WriteString("\n## CHAT HISTORY CONTEXT\n")
		b.WriteString("The user has also had conversations with you. Here are relevant excerpts that may provide additional context:\n\n")
		for _, m := range history {
			who := "You"
			if m.Role == llm.RoleUser {
				who = "User"
			}
			b.WriteString("- " + who + ": " + m.Content + "\n")
		}
	}

	name := languageName(lang)
	b.WriteString("\n## YOUR TASK\n")
	b.WriteString("Analyze these responses using clinical frameworks (like CBT principles, ACT, positive psychology) to provide personalized recommendations. Use a stepped-care approach where appropriate, focusing on self-help strategies while acknowledging when professional support may be beneficial.\n\n")
	b.WriteString("IMPORTANT: Provide your response in " + name + ". The user's preferred language is " + name + ", so all of your recommendations should be in " + name + " only.\n\n")
	b.WriteString("## RESPONSE FORMAT\n")
	b.WriteString("1. Begin with a brief, compassionate summary of their current situation (2-3 sentences)\n")
	b.WriteString("2. Provide 3-4 evidence-based, actionable techniques they can implement immediately\n")
	b.WriteString("3. Add 1-2 medium-term practices that could help if consistently applied\n")
	b.WriteString("4. If needed, include a gentle suggestion about professional support (without being alarmist)\n\n")
	b.WriteString("## RESPONSE CHARACTERISTICS\n")
	b.WriteString("- Warm, encouraging tone that normalizes their experiences\n")
	b.WriteString("- Practical, specific suggestions (not generic advice)\n")
	b.WriteString("- Focus on small, achievable steps\n")
	b.WriteString("- Accessible language (avoid jargon)\n")
	b.WriteString("- Maximum 400 words total\n")
	b.WriteString("- Use markdown formatting for clarity\n")
	b.WriteString("- Balance empathy with practical guidance\n")

	return b.String()
}

// fallbackRecommendation returns the static recommendation shown when the
// model is unavailable. One fixed template per supported language.
func fallbackRecommendation(lang string) string {
	switch lang {
	case "es":
		return `# Sus Recomendaciones de Bienestar

Basado en lo que ha compartido, aquí hay algunas prácticas basadas en evidencia que podrían ayudar:

## Estrategias de Apoyo Inmediato
* Practique respiración profunda durante 5 minutos cuando se sienta abrumado
* Establezca una rutina de sueño consistente con un período de relajación
* Conéctese con una persona que le apoye, aunque sea brevemente

## Construyendo Resiliencia
* Considere llevar un diario sobre tres momentos positivos cada día
* Incorpore gradualmente movimiento físico que se sienta bien para usted

¡Recuerde que los pequeños pasos importan! Intente solo uno de estos hoy y vea cómo se siente.`
	case "zh":
		return `# 您的健康见解

根据您分享的内容，以下是一些可能有帮助的循证实践：

## 即时支持策略
* 感到不知所措时，进行5分钟的深呼吸练习
* 建立一个有放松时间的一致睡眠常规
* 与支持您的人建立联系，即使是短暂的

## 建立韧性
* 考虑每天记录三个积极的时刻
* 逐渐加入让您感觉良好的体育活动

记住小步骤很重要！今天尝试其中一个，看看感觉如何。`
	default:
		return `# Your Wellness Insights

Based on what you've shared, here are some evidence-based practices that might help:

## Immediate Support Strategies
* Practice deep breathing for 5 minutes when feeling overwhelmed
* Establish a consistent sleep routine with a wind-down period
* Connect with a supportive person, even briefly

## Building Resilience
* Consider journaling about three positive moments each day
* Gradually incorporate physical movement that feels good for you

Remember that small steps matter! Try just one of these today and see how it feels.`
	}
}
