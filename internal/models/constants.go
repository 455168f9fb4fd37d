package models

const (
	// ContextSeparator joins retrieved chunks into a single context block.
	ContextSeparator = "\n\n"

	MetaSource  = "source"
	MetaPage    = "page"
	MetaChunkID = "chunk_id"
)

var (
	// AnswerPromptTemplate is rendered by langchaingo prompts (Go template syntax).
	AnswerPromptTemplate = `You are an expert legal assistant. Answer the user's question using only the context taken from the legal documents below.

**CONTEXT FROM LEGAL DOCUMENTS:**
{{.context}}

**USER QUESTION:** {{.question}}

**INSTRUCTIONS FOR YOUR RESPONSE:**
1. Answer only from the context above and do not rely on outside knowledge
2. Structure the answer with clear headings and bullet points
3. Format any cited laws, sections or definitions clearly
4. Use professional legal language while remaining accessible
5. If the context does not contain enough information to answer, say so explicitly and describe what additional information would be needed

**Please provide your response in a well-formatted, professional manner:**`
)
