package judge

// Sample is a built-in example email.
type Sample struct {
	Name  string
	Email string
}

// Samples are classified by the demo mode of the judge command.
var Samples = []Sample{
	{
		Name: "internship-fair",
		Email: `Subject: Spring 2024 CS Department Internship Fair - March 15th

Dear Computer Science Students,

The CS Department is hosting our annual Internship Fair on March 15th from 10 AM to 4 PM in the Student Union.
Over 50 tech companies will be present including Google, Microsoft, Apple, and local startups.

Please bring multiple copies of your resume and dress professionally.
Registration is required by March 10th through the career portal.

Best regards,
CS Career Services`,
	},
	{
		Name: "get-rich-quick",
		Email: `Subject: 🔥 URGENT! Make $5000/Week Working From Home!!! 💰💰💰

Dear Friend,

Congratulations! You have been SPECIALLY SELECTED for this AMAZING opportunity!!!

My name is Sarah and I was just like you - struggling with student loans and bills. But then I discovered this INCREDIBLE system that changed my life FOREVER!

✅ Work only 2 hours per day
✅ No experience required
✅ Make $5000+ per week GUARANTEED
✅ 100% legitimate (not a scam!)

This offer expires in 24 HOURS! Don't miss out on this life-changing opportunity!

Click here NOW to claim your spot: www.totally-not-a-scam.biz/get-rich-quick

Limited spots available! Act FAST!

Best wishes,
Sarah Johnson
"Former broke student, now millionaire!"

P.S. This email is sent to a limited number of people. You're one of the lucky few!`,
	},
}
