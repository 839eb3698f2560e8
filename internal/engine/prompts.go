package engine

const preprocessPrompt = `Analyze this satellite operations task and extract relevant keywords for memory retrieval.

TASK: %s

Extract:
1. Key entities (locations, objects, actions, time references)
2. Domain-specific terms (satellite operations, Earth observation, etc.)
3. Task type keywords

Respond with JSON:
{
    "keywords": ["keyword1", "keyword2", "keyword3"],
    "task_category": "brief category description",
    "entities": {
        "locations": ["location1"],
        "objects": ["object1"],
        "actions": ["action1"]
    }
}

IMPORTANT: Return ONLY valid JSON, no other text.`

const planningPrompt = `You are a satellite operations agent running a planning/execution cycle.

CURRENT TASK: %s

CYCLE: %d/%d

WORKING MEMORY STATE:
%s

RETRIEVED CONTEXT FROM LONG-TERM MEMORY:
%s

AVAILABLE TOOLS (External Actions):
%s

Your task is to select the NEXT ACTION to take. Consider:
1. What have we done so far? (check working memory)
2. What did similar past tasks do? (episodic memory)
3. What facts might help? (semantic memory)
4. What strategies have worked before? (procedural memory)
5. Should we execute a tool, or is the task complete?

CRITICAL: If required tools are not implemented or giving weird results, set task_complete=true and explain why blocked.

Respond with JSON:
{
    "analysis": "Brief analysis of current situation",
    "next_action": "tool_name OR null if task complete/blocked",
    "parameters": {"param": "value"},
    "reasoning": "Why this action? Or why blocked?",
    "confidence": 0.8,
    "task_complete": false
}

IMPORTANT: confidence must be 0.0-1.0. Set task_complete=true if no more actions OR if blocked.`

const synthesisPrompt = `Synthesize the final result of this satellite operations task.

ORIGINAL TASK: %s

ACTIONS EXECUTED: %s

TOOL RESULTS:
%s

CYCLES COMPLETED: %d/%d

Provide a comprehensive summary in JSON:
{
    "situation_summary": "Clear summary of what was accomplished",
    "analysis": "Key findings and insights",
    "recommendations": ["actionable", "recommendations"],
    "confidence": %.2f,
    "task_status": "completed"
}`
