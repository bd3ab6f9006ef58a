package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/kbsync/internal/model"
)

// Capability names one text transform. Capabilities are also the rate
// limiter keys and the metrics label.
type Capability string

const (
	CapabilityClean    Capability = "clean"
	CapabilityClassify Capability = "classify"
	CapabilityMerge    Capability = "merge"
	CapabilityGenerate Capability = "generate"
)

const cleanPrompt = `You are a documentation editor preparing internal product pages for an end-user knowledge base.

Rewrite the document given in "text" as clean Markdown:
- Keep every statement about how the product behaves, how to use it, its options, limits and known issues.
- Remove internal project material: planning notes, meeting minutes, task lists, team rosters, changelogs, ticket references and links meant only for the project team.
- Remove placeholder sections, empty headings and duplicated paragraphs.
- Keep headings, lists, tables and code blocks in Markdown.
- Do not invent content and do not summarize away details an end user needs.

Answer with the cleaned Markdown only.`

const classifyPrompt = `You classify product documentation against a fixed catalog.

"context" lists every known subject and, under it, the features that belong to it.
"text" is the document to classify.

Pick the single subject and feature from the catalog that the document describes.
Copy both names exactly as they appear in the catalog, including spelling and capitalization.

Answer with a JSON object and nothing else, for example:
{"subject": "Data Ingestion", "feature": "Connectors"}`

const mergePrompt = `You maintain the source document of a product feature.

"history" is the current version of the document. "text" is a newly received version of the same feature documentation.

Produce one updated Markdown document:
- Start from "history" and keep its structure and wording wherever "text" does not change the facts.
- Apply every addition, correction and removal found in "text". When the two disagree, "text" wins.
- Do not duplicate sections or paragraphs that say the same thing.
- Do not add information found in neither input.

Answer with the merged Markdown only.`

const articleRules = `If "history" holds a previous version of this article, do not start over. Edit that version:
- Keep unchanged parts verbatim and keep the existing order, numbering and anchors.
- Update only what the new "text" changes, and fold new material into the closest existing section.
- Remove or mark as deprecated anything "text" shows to be obsolete.
- Never repeat an item that already exists.
If "history" is empty, write the article from "text" alone.

Answer with the Markdown article only.`

const faqPrompt = `You are a technical writer producing an end-user FAQ article from the Markdown description of one product feature in "text".
Reuse and improve any question and answer content the description already has.

Use this layout:
# <Feature name>

## Overview
A short description of what the feature does.

## Frequently Asked Questions
Q1: <question>
A1: <answer>

Q2: <question>
A2: <answer>

` + articleRules

const troubleshootingPrompt = `You are a technical writer producing an end-user troubleshooting guide from the Markdown description of one product feature in "text".
Reuse and improve any symptom, cause or fix the description already has. Prefer plain language over internals.

Use this layout:
# <Feature name> Troubleshooting Guide

## Overview
## Symptoms
## Possible Causes
## Quick Fix
## Step-by-Step Resolution
## Verify the Fix
## Rollback
## Related Articles

` + articleRules

const tutorialPrompt = `You are a technical writer producing an end-user step-by-step tutorial from the Markdown description of one product feature in "text".
Reuse and improve any procedure the description already has. Write short, action-first steps.

Use this layout:
# <Feature name> Step-by-Step Tutorial

## Overview
## Prerequisites
## Before You Start
## Steps
1. <action, with the UI path or command>
   - Expected result: <what the user sees>
## Common Mistakes and Tips
## Next Steps

` + articleRules

// generatePrompts maps every article kind to its own instructions
var generatePrompts = map[model.ArticleKind]string{
	model.KindFAQ:             faqPrompt,
	model.KindTroubleshooting: troubleshootingPrompt,
	model.KindTutorial:        tutorialPrompt,
}

// GeneratePrompt returns the system prompt for an article kind
func GeneratePrompt(kind model.ArticleKind) (string, error) {
	prompt, ok := generatePrompts[kind]
	if !ok {
		return "", fmt.Errorf("no article prompt for kind %d", int(kind))
	}
	return prompt, nil
}

type promptInput struct {
	label string
	value string
}

// renderInputs lays out named inputs as labeled blocks in a fixed order
func renderInputs(inputs ...promptInput) string {
	var b strings.Builder
	for i, in := range inputs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(in.label)
		b.WriteString(":\n")
		b.WriteString(in.value)
	}
	return b.String()
}
