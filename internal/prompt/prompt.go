// Package prompt assembles the grounded system prompt for one chat turn.
//
// Assembly is pure string concatenation over its inputs: identical arguments
// always produce byte-identical output, so prompts can be asserted on in
// tests and compared across runs.
package prompt

import "fmt"

// contextSection frames retrieved knowledge and the fallback rule: the model
// may use general knowledge when the context is insufficient, but must say so.
const contextSection = "\n\n## Relevant Context from Knowledge Base\n\n" +
	"Use the following information to help answer the user's question:\n\n" +
	"%s\n\n---\n\n" +
	"If the context doesn't contain relevant information, you can still try " +
	"to help based on your general knowledge, but let the user know if " +
	"you're not certain."

// toolSection describes the on-demand retrieval tool for tool-affordance mode.
const toolSection = "\n\n## Knowledge Base\n\n" +
	"You have access to a tool named %q that searches this customer's " +
	"knowledge base. Call it whenever the user asks about product details, " +
	"account procedures, or policies you are not certain about. When the " +
	"tool returns sources, cite their titles in your answer."

// guidelinesSection is always appended last. The welcome message is restated
// verbatim so consistency can be checked downstream.
const guidelinesSection = "\n\n## Guidelines\n" +
	"- Be helpful, friendly, and concise\n" +
	"- If you don't know something, say so honestly\n" +
	"- Your welcome message is: %q"

// Build assembles the system prompt for inline-context mode. When
// contextText is empty (no relevant knowledge), the context section is
// omitted entirely rather than filled with low-relevance text.
func Build(instructions, contextText, welcomeMessage string) string {
	p := instructions
	if contextText != "" {
		p += fmt.Sprintf(contextSection, contextText)
	}
	p += fmt.Sprintf(guidelinesSection, welcomeMessage)
	return p
}

// BuildWithTool assembles the system prompt for tool-affordance mode, where
// retrieval is exposed as a tool the model invokes mid-generation instead of
// context injected up front.
func BuildWithTool(instructions, toolName, welcomeMessage string) string {
	p := instructions
	p += fmt.Sprintf(toolSection, toolName)
	p += fmt.Sprintf(guidelinesSection, welcomeMessage)
	return p
}
