package sentiment

// lexicon maps lower-case words to valence on a -4..4 scale.
var lexicon = map[string]float64{
	"amazing": 2.8, "awesome": 3.1, "excellent": 2.7, "fantastic": 2.6, "great": 3.1,
	"good": 1.9, "nice": 1.8, "cool": 1.3, "love": 3.2, "loved": 2.9, "loving": 2.9,
	"like": 1.5, "liked": 1.8, "likes": 1.8, "happy": 2.7, "glad": 2.0, "thanks": 1.9,
	"thank": 1.5, "thankful": 2.7, "grateful": 2.3, "appreciate": 2.1, "appreciated": 2.3,
	"helpful": 1.8, "useful": 1.9, "best": 3.2, "better": 1.9, "brilliant": 2.8,
	"beautiful": 2.9, "perfect": 2.7, "wonderful": 2.7, "impressive": 2.3, "impressed": 2.1,
	"recommend": 1.5, "recommended": 1.6, "interested": 1.7, "interesting": 1.7,
	"excited": 1.4, "exciting": 2.2, "win": 2.8, "winning": 2.4, "success": 2.7,
	"successful": 2.8, "fun": 2.3, "enjoy": 2.2, "enjoyed": 2.3, "easy": 1.9,
	"fast": 1.1, "quick": 0.9, "reliable": 1.8, "solid": 1.4, "smart": 1.7,
	"wow": 2.8, "yay": 2.4, "yes": 1.7, "sure": 1.3, "welcome": 2.0, "congrats": 2.4,
	"congratulations": 2.9, "inspiring": 2.6, "inspired": 2.2, "support": 1.7,
	"well": 1.1, "ok": 0.9, "okay": 0.9, "fine": 0.8, "hope": 1.9, "hopeful": 2.3,
	"kind": 2.4, "friendly": 2.2, "valuable": 2.1, "worth": 0.9, "wins": 2.7,

	"bad": -2.5, "terrible": -2.1, "awful": -2.0, "horrible": -2.5, "worst": -3.1,
	"worse": -2.1, "hate": -2.7, "hated": -3.2, "hates": -1.9, "poor": -2.1,
	"sad": -2.1, "angry": -2.3, "annoyed": -1.6, "annoying": -1.7, "disappointed": -1.9,
	"disappointing": -2.2, "useless": -1.8, "broken": -1.6, "fail": -2.5, "failed": -2.3,
	"failure": -2.3, "problem": -1.7, "problems": -1.7, "issue": -0.6, "issues": -0.7,
	"bug": -0.9, "bugs": -1.1, "slow": -1.0, "expensive": -0.9, "overpriced": -1.6,
	"scam": -3.0, "spam": -1.5, "fake": -2.1, "wrong": -2.1, "stupid": -2.4,
	"boring": -1.3, "ugly": -2.3, "waste": -1.8, "wasted": -2.2, "never": -0.5,
	"no": -1.2, "sucks": -1.5, "suck": -1.9, "mess": -1.5, "lost": -1.3,
	"lose": -1.7, "losing": -1.6, "hurt": -2.4, "pain": -2.3, "painful": -1.9,
	"scary": -2.2, "afraid": -2.2, "worried": -1.2, "worry": -1.9, "confused": -1.3,
	"confusing": -0.9, "difficult": -1.5, "hard": -0.4, "lazy": -1.5, "rude": -2.0,
	"unfortunately": -1.5, "sorry": -0.3, "ignore": -1.5, "ignored": -1.3, "disgusting": -2.4,
}

// boosters adjust the magnitude of the following sentiment word.
var boosters = map[string]float64{
	"absolutely": boosterIncr, "completely": boosterIncr, "extremely": boosterIncr,
	"really": boosterIncr, "so": boosterIncr, "very": boosterIncr, "totally": boosterIncr,
	"incredibly": boosterIncr, "super": boosterIncr, "truly": boosterIncr, "most": boosterIncr,
	"barely": -boosterIncr, "slightly": -boosterIncr, "somewhat": -boosterIncr,
	"kinda": -boosterIncr, "hardly": -boosterIncr, "little": -boosterIncr,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nothing": true,
	"neither": true, "nor": true, "without": true, "cannot": true,
	"dont": true, "doesnt": true, "didnt": true, "isnt": true, "wasnt": true,
	"arent": true, "wont": true, "cant": true, "couldnt": true, "shouldnt": true,
}
