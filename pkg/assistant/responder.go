package assistant

import (
	"context"
	"fmt"
	"strings"
)

// Responder produces the assistant's reply to a user message. history holds
// the conversation so far, oldest first, excluding text.
type Responder interface {
	Respond(ctx context.Context, history []Message, text string) (string, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, history []Message, text string) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, history []Message, text string) (string, error) {
	return f(ctx, history, text)
}

type topic struct {
	name     string
	keywords []string
	reply    string
}

// topics are matched in order; the first topic with a keyword contained in
// the lowercased message wins.
var topics = []topic{
	{
		name:     "methodology",
		keywords: []string{"methodology", "methods", "method", "research design", "study design"},
		reply: `**Research methodology**

1. Design: pick a qualitative, quantitative or mixed-methods approach that fits the question.
2. Sample: define the population, the sampling strategy and justify the sample size.
3. Data collection: describe instruments and procedures, and pilot them first.
4. Analysis: name the techniques and tools, and how validity and reliability are checked.
5. Ethics: ethics approval, informed consent and data protection.`,
	},
	{
		name:     "abstract",
		keywords: []string{"abstract", "summary"},
		reply: `**Writing an abstract (150-250 words)**

- Background: one or two sentences on why the problem matters.
- Objective: the aim or hypothesis in one sentence.
- Methods: design, sample and key procedures.
- Results: the main findings with concrete numbers.
- Conclusion: implications for the field.

Use the past tense, avoid citations and abbreviations, and end with 3-5 keywords.`,
	},
	{
		name:     "literature",
		keywords: []string{"literature", "review", "sources", "references"},
		reply: `**Structuring a literature review**

1. Introduction: scope, search strategy and purpose.
2. Organisation: chronological, thematic, methodological or theoretical.
3. Critical analysis: synthesise rather than summarise; show patterns, contradictions and gaps.
4. Conclusion: the key themes and the gap your study addresses.`,
	},
	{
		name:     "data",
		keywords: []string{"data", "analysis", "statistics", "statistical", "spss", "visualization"},
		reply: `**Data analysis**

1. Preparation: clean duplicates and errors, handle missing values and outliers.
2. Descriptives: central tendency, dispersion and frequencies.
3. Tests: t-test for two groups, ANOVA for three or more, chi-square for categories, correlation and regression for relationships.
4. Visualisation: bar charts, line graphs, scatter and box plots.
5. Reporting: name the test, report the statistic, p-value and effect size.`,
	},
	{
		name:     "writing",
		keywords: []string{"write", "writing", "paper", "manuscript", "draft", "publish"},
		reply: `**Academic writing**

- Follow IMRAD: introduction, methods, results and discussion.
- One idea per paragraph, opened by a topic sentence.
- Prefer precise, concise language over jargon.
- Revise in passes: structure first, then clarity, then grammar and references.`,
	},
	{
		name:     "citation",
		keywords: []string{"citation", "cite", "reference", "apa", "mla", "harvard", "chicago"},
		reply: `**Citations**

- APA: (Author, Year), reference list sorted by author.
- MLA: (Author page), works cited list.
- Chicago: notes and bibliography or author-date.
- Harvard: (Author Year), reference list.

Pick the style your target journal requires and use a reference manager to keep it consistent.`,
	},
	{
		name:     "results",
		keywords: []string{"results", "findings", "outcome"},
		reply: `**Writing the results section**

- Report findings in the order of your research questions.
- Give descriptive statistics before inferential tests.
- Report exact statistics, p-values and effect sizes.
- Use tables and figures for detail, and keep interpretation for the discussion.`,
	},
	{
		name:     "discussion",
		keywords: []string{"discussion", "interpret", "implication"},
		reply: `**Writing the discussion**

1. Restate the main findings briefly.
2. Interpret them against prior work.
3. Explain unexpected results.
4. State limitations honestly.
5. Close with implications and directions for future research.`,
	},
	{
		name:     "introduction",
		keywords: []string{"introduction", "intro", "background"},
		reply: `**Writing the introduction**

- Open broad: the field and why it matters.
- Narrow to what is known from key studies.
- Identify the gap.
- State your aim, questions or hypotheses.
- Outline the structure of the paper.`,
	},
}

// KeywordResponder answers with canned research guidance chosen by keywords
// in the user's message.
type KeywordResponder struct{}

// Topic returns the name of the topic text matches, or "" for none.
func (KeywordResponder) Topic(text string) string {
	if t := match(text); t != nil {
		return t.name
	}
	return ""
}

// Respond implements Responder.
func (KeywordResponder) Respond(_ context.Context, _ []Message, text string) (string, error) {
	if t := match(text); t != nil {
		return t.reply, nil
	}
	return fmt.Sprintf(`**Research assistant**

You asked: %q

I can help with research methodology, literature reviews, academic writing, data analysis, citations, abstracts, and the introduction, results and discussion sections.

Try a specific question, for example "How do I structure a methodology section?" or "How do I cite a journal article in APA?"`, text), nil
}

func match(text string) *topic {
	lower := strings.ToLower(text)
	for i := range topics {
		for _, kw := range topics[i].keywords {
			if strings.Contains(lower, kw) {
				return &topics[i]
			}
		}
	}
	return nil
}
