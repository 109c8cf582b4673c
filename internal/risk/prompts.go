package risk

const teamRiskPrompt = `Analyze the team risks for this startup.

Founders:
%s

Founder verification:
%s

Identify risks related to experience gaps in key areas, co-founder complementarity, previous startup experience, domain expertise, team completeness and key person dependency.

Return JSON with:
- "risk_score": 0-1 (1 being highest risk)
- "risk_factors": list of identified risks
- "strengths": list of team strengths
- "recommendations": suggested improvements`

const marketRiskPrompt = `Analyze market risks for this startup.

Market data:
%s

Competitive analysis:
%s

Problem: %s
Solution: %s

Assess market size and growth potential, timing, customer acquisition challenges, saturation, regulatory risk and economic sensitivity.

Return JSON with:
- "risk_score": 0-1 (1 being highest risk)
- "risk_factors": list of identified risks
- "strengths": list of market strengths
- "recommendations": suggested mitigations`
