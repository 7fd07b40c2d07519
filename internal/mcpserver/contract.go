package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# Monoid Note Format Contract

Every Markdown note stored in Monoid MUST follow this structure.

## Structure

` + "```" + `markdown
---
id: "20250115093000"                # REQUIRED – 14-digit timestamp, assigned by the server
type: note                          # OPTIONAL – note (default), summary, synthesis, quiz, template
title: Human-readable title         # OPTIONAL but strongly recommended – used in search and graph
tags:                               # OPTIONAL – bare strings are user tags
  - tag-one
  - name: tag-two                   # mapping form carries source and confidence
    source: ai
    confidence: 0.85
created: 2025-01-15T09:30:00Z       # OPTIONAL – RFC 3339 timestamp
updated: 2025-01-15T10:00:00Z       # OPTIONAL – stamped on every update
provenance: "20250110120000"        # OPTIONAL – id of the note this one was derived from
---

Body text in standard Markdown.

Use [[20250110120000]] wikilinks to reference other notes by id.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "`" + `---` + "`" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `id` + "`" + ` is required** and must match the filename stem. Never invent ids:
   the server assigns them when a note is created (they are 14-digit
   ` + "`" + `YYYYMMDDHHMMSS` + "`" + ` timestamps).
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `project-x` + "`" + `, ` + "`" + `meeting-notes` + "`" + `).
   Bare strings are user tags with confidence 1.0; machine-assigned tags use
   the mapping form with ` + "`" + `source: ai` + "`" + ` and a confidence in [0, 1].
4. **Wikilinks** use double brackets around the target note id: ` + "`" + `[[20250110120000]]` + "`" + `.
   Links to ids that do not exist are ignored by the graph.
5. **Files** live flat in the vault as ` + "`" + `<id>.md` + "`" + `. There are no folders.
6. **Encoding** is UTF-8 with a trailing newline.
7. **No HTML** unless absolutely necessary; prefer Markdown equivalents.
8. **Provenance** records derivation: a summary generated from a source note
   carries the source's id, which adds a derivative edge to the graph.

## Example

` + "```" + `markdown
---
id: "20250120140000"
type: summary
title: Weekly standup 2025-01-20
tags:
  - meeting-notes
  - project-x
created: 2025-01-20T14:00:00Z
provenance: "20250113140000"
---

# Weekly standup 2025-01-20

Attendees: Alice, Bob.

## Action items

- Alice to review the design doc in [[20250118090000]]
- Bob to update the roadmap in [[20250105110000]]
` + "```" + `
`
