package synthesis

const swotPrompt = `Generate a SWOT analysis for this startup.

Company: %s

Team:
%s

Problem: %s
Solution: %s

Market data:
%s

Traction:
%s

Percentile rankings:
%s

Red flags:
%s

Return JSON with "strengths", "weaknesses", "opportunities" and "threats", each a list of 3-5 clear, actionable insights.`

const memoPrompt = `Write a professional investment memo for this startup opportunity.

COMPANY OVERVIEW
Company: %s
Problem: %s
Solution: %s

TEAM
%s

MARKET & TRACTION
Market size: $%s
Current metrics: %s

FINANCIAL DATA
%s

INVESTMENT SCORING
Overall score: %.2f/1.0
Component scores: %s

SWOT ANALYSIS
%s

RISK ASSESSMENT
Overall risk: %.2f
Key risks: %s

Structure the memo with: Executive Summary, Company Overview, Market Opportunity, Team Assessment, Business Model & Traction, Financial Analysis, Risk Assessment, Investment Thesis, Recommendation.
Write in an analytical tone suitable for an investment committee and be specific with numbers.
Return JSON: {"memo": "<memo text>"}`
