package gemini

import "fmt"

const analysisPrompt = `Please analyze this video in extreme detail. Include:
1. Complete visual analysis (scenes, objects, people, actions, camera work)
2. Audio analysis (speech, music, sound effects, mood)
3. Narrative structure and flow
4. Technical specifications
5. Overall style and theme

Then create a comprehensive plan for generating a similar video with:
- Same style and aesthetic approach
- Similar narrative structure
- Same technical specifications (9:16 aspect ratio, under 60 seconds)
- Different content to avoid copying
- Specific shot-by-shot breakdown
- Audio requirements
- Character requirements if applicable

Format your response as JSON with 'analysis' and 'plan' fields.`

func textOnlyPrompt(fileInfo string) string {
	return fmt.Sprintf(`I have uploaded a video file that needs analysis, but I can't process it directly right now.

File information:
%s

Please create a comprehensive video analysis framework and plan for generating a similar video.

Assume this is a typical short-form video (under 60 seconds) that would be suitable for mobile viewing in 9:16 aspect ratio.

Please provide:
1. A detailed analysis framework covering:
   - Visual content structure
   - Audio content considerations
   - Narrative flow patterns
   - Technical specifications
   - Style and aesthetic guidelines

2. A comprehensive plan for generating a similar video including:
   - Scene-by-scene breakdown template
   - Technical specifications (9:16 aspect ratio, under 60 seconds)
   - Content creation guidelines to avoid copying
   - Shot composition recommendations
   - Audio requirements
   - Character development if applicable

Format your response as JSON with 'analysis' and 'plan' fields.`, fileInfo)
}

func revisionSystemPrompt(plan, analysis string) string {
	return fmt.Sprintf(`You are a video generation expert. The user has requested modifications to this plan:

ORIGINAL PLAN:
%s

ORIGINAL ANALYSIS:
%s

Please modify the plan based on the user's request while maintaining the same structure and format.`, plan, analysis)
}
