package quant

const narrativePrompt = `Analyze the following startup metrics and benchmarking data.

Traction metrics:
%s

Financials:
%s

Percentile rankings:
%s

Provide analysis on overall financial health, growth trajectory, unit economics, risk factors from the metrics and recommendations for improvement.
Return JSON with keys "financial_health", "growth_trajectory", "unit_economics", "risk_factors", "recommendations".`
