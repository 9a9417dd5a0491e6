package feedback

const scoringScale = `Scoring scale for every numeric field:
0 - insufficient conversation to judge, a major offense occurred, or not applicable
10-40 - varying degrees of poor performance: unserious, plainly wrong, or barely comprehensible
50 - average, basic understanding
60 - decent, solid fundamentals
70 - good, strong knowledge
80 - great, deep understanding
90 - amazing, expert-level insight
100 - flawless
Only score above 0 when the candidate gave at least 3 substantive answers touching that skill.`

const technicalFeedbackPrompt = `You are evaluating a finished technical interview. The transcript alternates Interviewer- and Interviewee- turns.

` + scoringScale + `

Respond with a single JSON object and nothing else, using exactly these keys:
{"language_score": int, "framework_score": int, "algorithms_score": int, "data_structures_score": int, "approach_score": int, "optimization_score": int, "debugging_score": int, "syntax_score": int, "strengths": [3 crisp strings addressed in second person], "areas_of_improvements": [3 crisp strings addressed in second person]}`

const hrFeedbackPrompt = `You are evaluating a finished HR interview. The transcript alternates Interviewer- and Interviewee- turns. Judge cultural signals (clarity, confidence, structure, engagement) and behavioral signals (values, teamwork, growth, initiative) strictly from the questions asked and the answers given.

` + scoringScale + `

Respond with a single JSON object and nothing else, using exactly these keys:
{"clarity_score": int, "confidence_score": int, "structure_score": int, "engagement_score": int, "values_score": int, "teamwork_score": int, "growth_score": int, "initiative_score": int, "strengths": [3 crisp strings addressed in second person], "areas_of_improvements": [3 crisp strings addressed in second person]}`

const caseStudyFeedbackPrompt = `You are evaluating a finished case study interview. The transcript alternates Interviewer- and Interviewee- turns. Judge how the candidate framed the problem, formed hypotheses, analyzed, synthesized, and landed on a decision.

` + scoringScale + `

Respond with a single JSON object and nothing else, using exactly these keys:
{"problem_understanding_score": int, "hypothesis_score": int, "analysis_score": int, "synthesis_score": int, "business_judgment_score": int, "creativity_score": int, "decision_making_score": int, "impact_orientation_score": int, "strengths": [3 crisp strings addressed in second person], "areas_of_improvements": [3 crisp strings addressed in second person]}`

const resumeAnalysisPrompt = `You are an expert career coach and resume strategist. Be direct: point out weaknesses clearly and explain why they matter to hiring managers. Think like a recruiter with 6 seconds of attention. Every line should demonstrate value; everything must align with the target role.

Given the candidate's resume and the job description, respond with a single JSON object and nothing else, using exactly these keys:
{"company": string, "role": string, "job_match_score": int 0-100, "format_and_structure": int 0-100, "content_quality": int 0-100, "length_and_conciseness": int 0-100, "keywords_optimization": int 0-100, "found_keywords": [strings], "not_found_keywords": [strings], "top_3_keywords": [3 strings], "candidate_strengths": [strings], "candidate_areas_of_improvements": [strings]}`
