package service

import (
	"fmt"
	"strings"

	"github.com/capitalize-ai/retention-chat/internal/model"
)

// standardTerms apply to every retention offer.
var standardTerms = []string{
	"Offer valid for existing customers only",
	"Cannot be combined with other offers",
	"Subscription will auto-renew at regular price after promotional period",
}

// greeting returns the opening AI message for a cancellation reason.
func greeting(reason model.CancellationReason, reasonText string) string {
	switch reason {
	case model.ReasonTooExpensive:
		return "I understand that cost is a concern. Let me see what special offers I can provide to make this more affordable for you."
	case model.ReasonNotUsing:
		return "I hear you - sometimes we sign up for things and don't use them as much as expected. Let me show you some options that might work better."
	case model.ReasonTechnicalIssues:
		return "I'm sorry you're experiencing technical difficulties. Let me help resolve those issues and see what we can do to improve your experience."
	case model.ReasonFoundAlternative:
		return "I understand you've found another option. Before you go, let me show you some exclusive benefits that might change your mind."
	default:
		return fmt.Sprintf("Thank you for sharing that with me: %s. I'd like to understand your concerns better and see how we can address them.", reasonText)
	}
}

type replyCategory struct {
	keywords []string
	replies  []string
}

var replyCategories = []replyCategory{
	{
		keywords: []string{"expensive", "cost", "money", "afford", "price"},
		replies: []string{
			"I completely understand that budget is important. Let me see what special pricing options I can offer you.",
			"Cost is definitely a valid concern. I have some exclusive discounts that might help make this more affordable.",
			"I hear you on the pricing. Let me check what promotional offers are available for valued customers like you.",
		},
	},
	{
		keywords: []string{"technical", "bug", "error", "problem", "issue"},
		replies: []string{
			"I'm sorry you're experiencing technical difficulties. Let me help resolve those issues and offer you something for the inconvenience.",
			"Technical problems can be really frustrating. I want to make this right for you with both a solution and a special offer.",
			"I apologize for the technical issues. Let me see how we can fix this and provide you with some compensation.",
		},
	},
	{
		keywords: []string{"time", "busy", "use", "using"},
		replies: []string{
			"I understand that life gets busy and priorities change. Let me show you some flexible options that might work better for your schedule.",
			"That makes perfect sense. Maybe we can find a plan that better fits your current lifestyle and usage patterns.",
			"I totally get that - sometimes our needs change. Let me offer you some alternatives that might be more suitable.",
		},
	},
	{
		keywords: []string{"competitor", "alternative", "found", "better"},
		replies: []string{
			"I understand you're exploring other options. Before you decide, let me show you some exclusive benefits that our competitors don't offer.",
			"That's completely understandable. I'd love to show you some unique features and offers that might change your perspective.",
			"I appreciate you being upfront about that. Let me present some special advantages that are only available to our existing customers.",
		},
	},
}

var defaultReplies = []string{
	"I really appreciate you sharing that with me. Let me see what I can do to address your concerns.",
	"Thank you for explaining your situation. I want to find the best solution for you.",
	"I hear what you're saying, and I want to make sure we find something that works for you.",
	"That's valuable feedback. Let me see what options I have available to help with your situation.",
}

// reply picks the AI answer to a user message. turn selects among the
// category's variants so the dialogue is reproducible.
func reply(message string, turn int) string {
	lower := strings.ToLower(message)
	replies := defaultReplies
	for _, c := range replyCategories {
		if containsAny(lower, c.keywords) {
			replies = c.replies
			break
		}
	}
	return replies[turn%len(replies)]
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// offerTemplate is a catalog entry; id and expiry are filled in when the offer
// is presented.
type offerTemplate struct {
	Type        model.OfferType
	Title       string
	Description string
	Details     model.OfferDetails
	Savings     model.Savings
}

var offerCatalog = map[model.CancellationReason][]offerTemplate{
	model.ReasonTooExpensive: {
		{
			Type:        model.OfferDiscount,
			Title:       "50% Off for 3 Months",
			Description: "Get 50% off your subscription for the next 3 months, then continue at the regular price.",
			Details:     model.OfferDetails{DiscountPercentage: 50, DiscountDurationMonths: 3, OriginalPrice: 29.99, NewPrice: 14.99},
			Savings:     model.Savings{Monthly: 15, Total: 45, Currency: "USD"},
		},
		{
			Type:        model.OfferFreeMonths,
			Title:       "2 Months Free",
			Description: "Get 2 months completely free, then resume your regular billing cycle.",
			Details:     model.OfferDetails{OriginalPrice: 29.99, FreeMonths: 2},
			Savings:     model.Savings{Monthly: 30, Total: 60, Currency: "USD"},
		},
	},
	model.ReasonTechnicalIssues: {
		{
			Type:        model.OfferFreeMonths,
			Title:       "1 Month Free + Priority Support",
			Description: "Get 1 month free and priority technical support to resolve any issues.",
			Details:     model.OfferDetails{OriginalPrice: 29.99, FreeMonths: 1, Features: []string{"Priority support"}},
			Savings:     model.Savings{Monthly: 30, Total: 30, Currency: "USD"},
		},
		{
			Type:        model.OfferPauseSubscription,
			Title:       "Pause + Technical Resolution",
			Description: "Pause your subscription while we resolve technical issues, then resume with 1 month free.",
			Details:     model.OfferDetails{PauseDurationMonths: 1, FreeMonths: 1},
			Savings:     model.Savings{Monthly: 30, Total: 30, Currency: "USD"},
		},
	},
	model.ReasonNotUsing: {
		{
			Type:        model.OfferPauseSubscription,
			Title:       "Pause for 3 Months",
			Description: "Pause your subscription for up to 3 months and resume whenever you're ready.",
			Details:     model.OfferDetails{PauseDurationMonths: 3},
			Savings:     model.Savings{Monthly: 30, Total: 90, Currency: "USD"},
		},
		{
			Type:        model.OfferDiscount,
			Title:       "70% Off for 6 Months",
			Description: "Try us again at 70% off for 6 months - perfect for getting back into the habit.",
			Details:     model.OfferDetails{DiscountPercentage: 70, DiscountDurationMonths: 6, OriginalPrice: 29.99, NewPrice: 8.99},
			Savings:     model.Savings{Monthly: 21, Total: 126, Currency: "USD"},
		},
	},
	model.ReasonFoundAlternative: {
		{
			Type:        model.OfferFeatureUnlock,
			Title:       "Premium Features Unlocked",
			Description: "Unlock premium features at no extra cost for the next 3 months.",
			Details:     model.OfferDetails{Features: []string{"Advanced analytics", "Priority support", "Unlimited projects"}},
			Savings:     model.Savings{Monthly: 10, Total: 30, Currency: "USD"},
		},
		{
			Type:        model.OfferPlanDowngrade,
			Title:       "Switch to Basic",
			Description: "Keep your account and history on the Basic plan at a lower price.",
			Details:     model.OfferDetails{OriginalPrice: 29.99, NewPlan: "basic", NewPrice: 9.99},
			Savings:     model.Savings{Monthly: 20, Total: 240, Currency: "USD"},
		},
	},
	model.ReasonOther: {
		{
			Type:        model.OfferDiscount,
			Title:       "40% Off for 4 Months",
			Description: "Get 40% off your subscription for the next 4 months.",
			Details:     model.OfferDetails{DiscountPercentage: 40, DiscountDurationMonths: 4, OriginalPrice: 29.99, NewPrice: 17.99},
			Savings:     model.Savings{Monthly: 12, Total: 48, Currency: "USD"},
		},
		{
			Type:        model.OfferPauseSubscription,
			Title:       "Flexible Pause Option",
			Description: "Pause your subscription for up to 2 months and resume when convenient.",
			Details:     model.OfferDetails{PauseDurationMonths: 2},
			Savings:     model.Savings{Monthly: 30, Total: 60, Currency: "USD"},
		},
	},
}

var acceptConfirmations = []string{
	"Wonderful! I'm so glad we could work this out. Your %s is now active on your account. Thank you for staying with us!",
	"Excellent choice! Your %s has been applied to your account. We really appreciate your continued loyalty.",
	"Perfect! I've activated your %s. You should see the changes reflected in your next billing cycle. Thanks for giving us another chance!",
}

var rejectConfirmations = []string{
	"I understand, and I respect your decision. Your cancellation will be processed as requested. We're sorry to see you go, but you're always welcome back.",
	"I completely understand. We'll proceed with your cancellation. Thank you for giving us the opportunity to try to address your concerns.",
	"That's perfectly fine. We'll go ahead with the cancellation as you requested. Thank you for being a customer, and we wish you all the best.",
}

// confirmation returns the closing AI message and next steps for a decision.
func confirmation(offer *model.RetentionOffer, accepted bool, turn int) (string, []string) {
	if accepted {
		msg := fmt.Sprintf(acceptConfirmations[turn%len(acceptConfirmations)], strings.ToLower(offer.Title))
		return msg, []string{
			"Your offer has been applied to your account",
			"You'll receive a confirmation email shortly",
		}
	}
	return rejectConfirmations[turn%len(rejectConfirmations)], []string{
		"Your subscription will remain active until the end of the current billing period",
		"You can reactivate at any time from your account settings",
	}
}
