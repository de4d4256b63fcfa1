package tui

import "github.com/valter-silva-au/commission-desk/internal/core"

var staticContent = map[string]string{
	core.PathAbout: `Commission Desk is the client for the task commission service.

Start a task to receive a product assignment, then submit it from the
Records page to earn the listed commission. Combo assignments bundle
several products; their members are submitted one after another.`,

	core.PathFAQ: `How do I earn commission?
  Start a task, then submit the pending record on the Records page.

What is a combo?
  A set of products assigned together. Only the highlighted member can be
  submitted; the next member becomes available once it completes.

Why was I sent to the deposit page?
  Combo products are paid for up front. A negative balance must be topped
  up before the combo can be completed.

When are withdrawals paid?
  Withdrawals are reviewed by the service and stay pending until approved.`,

	core.PathTerms: `By using this client you agree to the service's terms.

Balances, commission rates and VIP tiers are set by the service and may
change at any time. Deposits and withdrawals are processed by the service;
this client only forwards your requests.`,
}

// StaticPage returns the body of a static content page.
func StaticPage(path string) (string, bool) {
	body, ok := staticContent[path]
	return body, ok
}
