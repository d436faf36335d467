package mcpserver

// EmbedContract describes the stored document format and the quest embed
// node that LLM consumers should produce when importing or writing documents.
const EmbedContract = `# questcard Document Contract

Documents are stored as editor-state JSON. The root holds an ordered list of
block nodes; two block types are understood, everything else is kept as is.

## Quest embed

` + "```" + `json
{"format": "", "type": "vantient-quest", "version": 1, "questID": "<quest id>"}
` + "```" + `

1. ` + "`" + `questID` + "`" + ` is REQUIRED and non-empty. It is the quest identifier on cmty.space.
2. ` + "`" + `format` + "`" + ` is one of "", left, start, center, right, end, justify.
   Unknown values are read as "".
3. The plain-text form of an embed is ` + "`" + `https://cmty.space/quest/<questID>` + "`" + `.

## Paragraph

` + "```" + `json
{"format": "", "type": "paragraph", "version": 1, "text": "Plain text"}
` + "```" + `

Lexical paragraphs whose text lives in child text nodes are accepted too
and kept as written. The first paragraph's first line is the document title.

## HTML interchange

Use the ` + "`" + `import_html` + "`" + ` tool to create a document from markup. Quest embeds are
recognized from

` + "```" + `html
<div data-lexical-vantient-quest-id="<quest id>">https://cmty.space/quest/<quest id></div>
` + "```" + `

and ` + "`" + `<p>` + "`" + ` elements become paragraphs, as do headings, list items and
divs holding text without nested blocks. Other elements are descended into
and dropped when nothing inside them is recognized. Scripts and styles are
removed before import.

## Example

` + "```" + `json
{"root": {"children": [
  {"format": "", "type": "paragraph", "version": 1, "text": "This week's quests"},
  {"format": "center", "type": "vantient-quest", "version": 1, "questID": "q-42"}
], "direction": null, "format": "", "indent": 0, "type": "root", "version": 1}}
` + "```" + `
`
