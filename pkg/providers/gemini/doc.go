// Package gemini implements the Gemini generateContent adapter.
//
// The model travels in the URL (/v1beta/models/{model}:generateContent),
// so ParseRequest only reads the prompt. The prompt is the text of the last
// content whose role is "user" or empty; the completion is the text of the
// first candidate. Rewrites put the new text in the first text part and
// drop the remaining text parts, keeping inline data and function parts.
package gemini
