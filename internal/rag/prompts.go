package rag

// contextualizePrompt instructs the model to rewrite a follow-up question
// into one that stands alone without the conversation.
const contextualizePrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, " +
	"formulate a standalone question which can be understood " +
	"without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

// answerSystemPrompt is the system instruction for answer generation.
// The retrieved context block is appended after a blank line.
const answerSystemPrompt = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer " +
	"the question. If you don't know the answer, just say " +
	"that you don't know. Use three sentences maximum and keep " +
	"the answer concise."
