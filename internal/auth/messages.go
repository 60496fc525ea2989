package auth

// 利用者向けメッセージ。入力・業務エラーはベンガル語、汎用エラーは英語。
const (
	msgInvalidAction  = "Invalid action"
	msgInvalidMethod  = "Invalid request method"
	msgDatabaseError  = "Database error"
	msgSessionError   = "Session error"
	msgSessionActive  = "Session active"
	msgNoSession      = "No active session"
	msgLoginSuccess   = "লগইন সফল হয়েছে"
	msgLoginRequired  = "সকল ফিল্ড পূরণ করুন"
	msgBadCredentials = "মোবাইল নম্বর অথবা পাসওয়ার্ড ভুল"
	msgInactive       = "আপনার একাউন্টটি নিষ্ক্রিয় রয়েছে"
	msgTooManyTries   = "অনেকবার ভুল চেষ্টা করা হয়েছে, কিছুক্ষণ পরে আবার চেষ্টা করুন"

	msgRegisterRequired = "সকল আবশ্যক ফিল্ড পূরণ করুন"
	msgInvalidMobile    = "সঠিক মোবাইল নম্বর দিন"
	msgPasswordTooShort = "পাসওয়ার্ড কমপক্ষে ৬ অক্ষরের হতে হবে"
	msgDuplicateMobile  = "এই মোবাইল নম্বর দিয়ে ইতিমধ্যে একাউন্ট আছে"
	msgRegisterSuccess  = "একাউন্ট তৈরি সফল হয়েছে"
	msgRegisterFailed   = "একাউন্ট তৈরি করা যায়নি"
	msgLogoutSuccess    = "লগআউট সফল হয়েছে"
)
