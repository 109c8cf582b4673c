package extraction

const foundersPrompt = `Extract founder information from the following text. Look for:
- Names of founders/co-founders
- Previous work experience (especially "ex-" companies)
- Educational background
- Years of experience
- Roles and responsibilities

Text: %s

Return JSON in this format:
{"founders": [{"name": "Founder Name", "background": "Brief background description", "experience_years": number, "previous_companies": ["Company1"], "education": "University/Degree", "role": "CEO/CTO/etc"}]}`

const marketPrompt = `Extract market size and opportunity information from the following text.
Look for TAM, SAM, SOM, market growth rates and the target market description.

Text: %s

Return JSON in this format:
{"tam": number or null, "sam": number or null, "som": number or null, "target_market": "description", "market_growth_rate": number or null, "market_trends": ["trend1"]}`

const tractionPrompt = `Extract traction and growth metrics from the following text.
Look for MRR, ARR, CAC, LTV, churn rate, user and customer counts and growth rates.

Text: %s

Return JSON in this format:
{"mrr": number or null, "arr": number or null, "cac": number or null, "ltv": number or null, "churn_rate": number or null, "user_count": number or null, "customer_count": number or null, "growth_rate": number or null, "key_metrics": ["metric: value"]}`

const financialsPrompt = `Extract financial information from the following text.
Look for current revenue, burn rate, funding requested, valuation, runway in months and previous funding rounds.

Text: %s

Return JSON in this format:
{"revenue": number or null, "burn_rate": number or null, "funding_requested": number or null, "valuation": number or null, "runway_months": number or null, "previous_funding": [{"round": "Seed", "amount": number, "date": "YYYY-MM-DD", "investors": ["Investor1"]}]}`

const basicsPrompt = `Extract basic company information from the following text.
Look for the company name, the problem being solved, the solution, competitors mentioned and the technology stack.

Text: %s

Return JSON in this format:
{"company_name": "Company Name", "problem_statement": "Clear problem description", "solution_description": "How they solve the problem", "competitors": ["Competitor1"], "technology": ["Tech1"], "business_model": "B2B/B2C/Marketplace/etc"}`
