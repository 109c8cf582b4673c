package ingest

const imageInstruction = `Transcribe every piece of text visible in this startup pitch material.
Keep slide titles, numbers and labels. Return JSON: {"text": "<transcribed text>"}`

const audioInstruction = `Transcribe this startup pitch or founder call. Label speakers as "Speaker 1", "Speaker 2" when they change.
Return JSON: {"text": "<full transcript>"}`

const cleanPrompt = `Clean and structure the following extracted text from a startup pitch deck or call transcript.
Remove OCR errors, fix formatting, and make it readable while preserving all important information.

Text to clean:
%s

Return JSON: {"cleaned_text": "<cleaned, well-formatted text>"}`
