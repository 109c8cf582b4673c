package enrichment

const verifyFounderPrompt = `Verify the following founder claims against the public profile data found for them.

Founder claims:
%s

Public profile data:
%s

Return JSON with:
- "verification_score": float between 0 and 1
- "verified_claims": list of verified claims
- "discrepancies": list of discrepancies found
- "confidence": "high", "medium" or "low"`

const competitiveLandscapePrompt = `Analyze the competitive landscape based on the following competitor data:
%s

Provide analysis on market saturation level, funding trends in the space, key differentiators needed and the market opportunity.
Return JSON with keys "market_saturation", "funding_trends", "key_differentiators", "opportunity_assessment".`

const newsSentimentPrompt = `Assess press sentiment about the startup %q from these recent search results:
%s

Return JSON with:
- "sentiment_score": float between 0 (very negative) and 1 (very positive)
- "news_coverage": "limited", "moderate" or "broad"
- "summary": one sentence`
